package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeFrench  locale = "fr"
)

type messages struct {
	recording  string
	paused     string
	processing string
	errorText  string
}

func notifyMessagesFromEnv() messages {
	return notifyMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "fr") {
		return localeFrench
	}
	return localeEnglish
}

func notifyMessages(tag locale) messages {
	switch tag {
	case localeFrench:
		return messages{
			recording:  "Enregistrement…",
			paused:     "En pause",
			processing: "Transcription…",
			errorText:  "Erreur de reconnaissance vocale",
		}
	default:
		return messages{
			recording:  "Recording…",
			paused:     "Paused",
			processing: "Transcribing…",
			errorText:  "Speech recognition error",
		}
	}
}
