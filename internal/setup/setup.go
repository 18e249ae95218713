// Package setup collects the chat bot credentials and persists them to a
// small JSON file next to the configuration.
package setup

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	enLocal "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTrans "github.com/go-playground/validator/v10/translations/en"
	"github.com/zeromicro/go-zero/core/logx"
)

// ErrInvalidCredentials is returned when a token or admin id fails validation.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is the content of the credentials file.
type Credentials struct {
	Token string `json:"token" label:"bot token" validate:"required,contains=:"`
	Admin string `json:"admin" label:"admin id" validate:"required,numeric"`
}

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("label")
	})

	local := enLocal.New()
	trans, _ = ut.New(local).GetTranslator(local.Locale())
	_ = enTrans.RegisterDefaultTranslations(validate, trans)
}

// Validate reports the first failing field as a readable message.
func (c *Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, verrs[0].Translate(trans))
	}
	return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
}

// Load reads and validates the credentials file at path.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials %s: %w", path, err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Save writes the credentials to path, readable by the owner only.
func Save(path string, creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write credentials %s: %w", path, err)
	}
	return nil
}

// MaskToken hides the middle of a token for display. Short tokens are
// hidden entirely.
func MaskToken(token string) string {
	if len(token) < 10 {
		return strings.Repeat("*", len(token))
	}
	return token[:5] + "..." + token[len(token)-5:]
}

// Run drives the interactive setup. When path already holds valid
// credentials the user may reuse them; otherwise the token and admin id are
// prompted for and saved. The resulting credentials are summarized on out
// with the token masked.
func Run(in io.Reader, out io.Writer, path string) (*Credentials, error) {
	reader := bufio.NewReader(in)
	var creds *Credentials

	if _, err := os.Stat(path); err == nil {
		answer, err := prompt(reader, out, "Config found. Reuse config? [y/n]: ")
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(answer, "y") {
			creds, err = Load(path)
			if err != nil {
				logx.Errorf("ignoring saved credentials: %v", err)
				creds = nil
			}
		}
	}

	if creds == nil {
		token, err := prompt(reader, out, "Enter your Telegram Bot Token: ")
		if err != nil {
			return nil, err
		}
		admin, err := prompt(reader, out, "Enter your Admin Telegram ID: ")
		if err != nil {
			return nil, err
		}
		creds = &Credentials{Token: token, Admin: admin}
		if err := Save(path, creds); err != nil {
			return nil, err
		}
		fmt.Fprintln(out, "Config saved successfully.")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Bot Token:", MaskToken(creds.Token))
	fmt.Fprintln(out, "Admin ID :", creds.Admin)
	return creds, nil
}

// prompt writes label and returns the trimmed line typed in reply. A final
// line without a newline is accepted; an empty stream is an error.
func prompt(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
