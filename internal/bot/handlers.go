package bot

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cast"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

const welcome = `Send me Python source as a message or a .py file, then run /obfuscate.

/recursive N  set how many layer cycles run (1-%d, now %d)
/imports [on|off]  re-add harvested imports at the top (now %s)
/obfuscate  obfuscate the pending code`

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// parseSwitch accepts on/off as well as anything cast reads as a bool.
func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return cast.ToBoolE(s)
}

func (b *Bot) handleCommand(ctx context.Context, req snowflake.ID, msg *tgbotapi.Message) error {
	session, err := b.store.Get(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(msg, fmt.Sprintf(welcome, b.cfg.MaxRecursion, session.Recursion, onOff(session.IncludeImports)))
		return nil

	case "recursive":
		n, err := cast.ToIntE(args)
		if err != nil || n < 1 || n > b.cfg.MaxRecursion {
			return userErrorf("Usage: /recursive N with N between 1 and %d", b.cfg.MaxRecursion)
		}
		session.Recursion = n
		if err := b.store.Save(ctx, msg.Chat.ID, session); err != nil {
			return err
		}
		b.reply(msg, fmt.Sprintf("Recursion set to %d.", n))
		return nil

	case "imports":
		if args == "" {
			session.IncludeImports = !session.IncludeImports
		} else {
			on, err := parseSwitch(args)
			if err != nil {
				return userErrorf("Usage: /imports [on|off]")
			}
			session.IncludeImports = on
		}
		if err := b.store.Save(ctx, msg.Chat.ID, session); err != nil {
			return err
		}
		b.reply(msg, fmt.Sprintf("Import re-injection is %s.", onOff(session.IncludeImports)))
		return nil

	case "obfuscate":
		if session.Code == "" {
			return userErrorf("Send some Python code first.")
		}
		return b.obfuscate(ctx, req, msg, session)

	default:
		return userErrorf("Unknown command /%s, try /start.", msg.Command())
	}
}

// setCode stores src as the pending code of the chat.
func (b *Bot) setCode(ctx context.Context, msg *tgbotapi.Message, src string) error {
	if len(src) > b.cfg.MaxSourceBytes {
		return userErrorf("Source is too large: %d bytes, the limit is %d.", len(src), b.cfg.MaxSourceBytes)
	}
	session, err := b.store.Get(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	session.Code = src
	if err := b.store.Save(ctx, msg.Chat.ID, session); err != nil {
		return err
	}
	b.reply(msg, fmt.Sprintf("Code received (%d bytes). Send /obfuscate to run it.", len(src)))
	return nil
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) error {
	doc := msg.Document
	if !strings.EqualFold(path.Ext(doc.FileName), ".py") {
		return userErrorf("Only .py files are accepted.")
	}
	if int64(doc.FileSize) > int64(b.cfg.MaxSourceBytes) {
		return userErrorf("File is too large: %d bytes, the limit is %d.", doc.FileSize, b.cfg.MaxSourceBytes)
	}
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return fmt.Errorf("failed to locate %s: %w", doc.FileName, err)
	}
	src, err := b.download(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", doc.FileName, err)
	}
	if !utf8.Valid(src) {
		return userErrorf("%s is not UTF-8 text.", doc.FileName)
	}
	return b.setCode(ctx, msg, string(src))
}

// download fetches url, reading at most one byte past the source limit.
func (b *Bot) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(b.cfg.MaxSourceBytes)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > b.cfg.MaxSourceBytes {
		return nil, userErrorf("File is too large, the limit is %d bytes.", b.cfg.MaxSourceBytes)
	}
	return data, nil
}

// obfuscate runs a fresh engine over the session code and sends the result.
func (b *Bot) obfuscate(ctx context.Context, req snowflake.ID, msg *tgbotapi.Message, session Session) error {
	recursion := session.Recursion
	if recursion < 1 || recursion > b.cfg.MaxRecursion {
		recursion = 1
	}
	engine, err := obfuscator.New(session.Code, session.IncludeImports, recursion, b.octx.EngineOptions()...)
	if err != nil {
		return err
	}
	out, err := engine.Obfuscate(ctx)
	if err != nil {
		return err
	}
	r := engine.Report()
	logx.Infow("obfuscated",
		logx.Field("request", req.String()),
		logx.Field("chat", msg.Chat.ID),
		logx.Field("layers", len(r.Layers)),
		logx.Field("renamed", r.Rename.Renamed),
		logx.Field("bytes", len(out)))

	if utf8.RuneCountInString(out) < b.cfg.InlineLimit {
		reply := tgbotapi.NewMessage(msg.Chat.ID, `<pre><code class="language-python">`+html.EscapeString(out)+`</code></pre>`)
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyToMessageID = msg.MessageID
		if _, err := b.api.Send(reply); err != nil {
			return fmt.Errorf("failed to send result: %w", err)
		}
		return nil
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("obfuscated_%s.py", req),
		Bytes: []byte(out),
	})
	doc.Caption = fmt.Sprintf("Obfuscated with %d layers.", len(r.Layers))
	doc.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send result: %w", err)
	}
	return nil
}
