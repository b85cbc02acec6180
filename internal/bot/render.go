package bot

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/service"
	"github.com/dtroode/vpnbot/internal/vless"
)

const msgInternalError = "Something went wrong on our side. Please try again in a minute."

func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔐 Get VPN", CallbackGet),
		),
	)
}

func profileKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", CallbackRefresh),
			tgbotapi.NewInlineKeyboardButtonData("📄 Client config", CallbackConfig),
		),
	)
}

func newText(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = keyboard
	return msg
}

func welcomeText(user model.User) string {
	name := user.FullName
	if name == "" {
		name = user.Username
	}
	if name == "" {
		return "Welcome! Press the button below to get your VPN profile."
	}
	return fmt.Sprintf("Welcome, %s! Press the button below to get your VPN profile.", html.EscapeString(name))
}

func profileText(res service.SyncResult) string {
	p := res.Profile

	var b strings.Builder
	if res.Created {
		b.WriteString("✅ Your VPN profile is ready.\n\n")
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(p.Label))
	fmt.Fprintf(&b, "Server: <code>%s:%d</code>\n", html.EscapeString(p.Server), p.Port)
	fmt.Fprintf(&b, "Transport: %s, security: %s\n\n", html.EscapeString(string(p.Transport)), html.EscapeString(string(p.Security)))
	fmt.Fprintf(&b, "<code>%s</code>", html.EscapeString(vless.URI(p)))

	if !res.Synced {
		b.WriteString("\n\n⚠️ Could not synchronize with the VPN server, showing the last known profile.")
		if res.Error != "" {
			fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(res.Error))
		}
	}

	return b.String()
}

func configDocument(chatID int64, res service.SyncResult, alpn []string) (tgbotapi.DocumentConfig, error) {
	body, err := json.MarshalIndent(vless.NewClientConfig(res.Profile, alpn), "", "  ")
	if err != nil {
		return tgbotapi.DocumentConfig{}, fmt.Errorf("failed to encode client config: %w", err)
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  configFileName(res.Profile),
		Bytes: body,
	})
	if !res.Synced {
		doc.Caption = "⚠️ Last known profile, synchronization failed."
	}
	return doc, nil
}

func configFileName(p model.Profile) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '-'
		default:
			return -1
		}
	}, p.Label)
	if name == "" {
		name = "vless"
	}
	return name + ".json"
}
