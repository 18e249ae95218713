/*
pymixer (Entry Point)

pymixer obfuscates Python source: it renames identifiers, hides built-in and
imported names behind eval indirection, encodes literals and buries the
result in noise comments. It works on single files, whole directory trees,
or as a Telegram bot.
*/
package main

import (
	"github.com/whit3rabbit/pymixer/cmd/pymixer/cmd"
)

func main() {
	cmd.Execute()
}
