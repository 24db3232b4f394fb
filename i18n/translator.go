package i18n

import (
	"strings"

	"go.uber.org/atomic"
)

// Translator retrieves localized titles for error codes. data carries optional
// details; the built-in dictionary appends data["names"] when present.
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var dictionaries = map[string]map[string]string{
	"en": {
		"required":               "required property missing",
		"unknown_key":            "property not defined",
		"invalid_type":           "invalid type",
		"composition_mismatch":   "value does not match the composed schemas",
		"discriminator_missing":  "discriminator property missing",
		"discriminator_unknown":  "unknown discriminator value",
		"depth_exceeded":         "nesting too deep",
		"duplicate_key":          "duplicate key",
		"parse_error":            "parse error",
		"request_body_required":  "request body required",
		"unsupported_media_type": "unsupported media type",
		"body_too_large":         "request body too large",
		"operation_not_found":    "no matching operation",
		"document_unavailable":   "no API document loaded",
	},
	"ja": {
		"required":               "必須プロパティが不足しています",
		"unknown_key":            "定義されていないプロパティです",
		"invalid_type":           "型が不正です",
		"composition_mismatch":   "合成スキーマのいずれにも一致しません",
		"discriminator_missing":  "判別プロパティが不足しています",
		"discriminator_unknown":  "判別値が不明です",
		"depth_exceeded":         "ネストが深すぎます",
		"duplicate_key":          "キーが重複しています",
		"parse_error":            "解析エラー",
		"request_body_required":  "リクエストボディが必要です",
		"unsupported_media_type": "サポートされていないメディアタイプです",
		"body_too_large":         "リクエストボディが大きすぎます",
		"operation_not_found":    "該当するオペレーションがありません",
		"document_unavailable":   "APIドキュメントが読み込まれていません",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := dictionaries[t.lang][code]
	if !ok {
		return code
	}
	if names := data["names"]; names != "" {
		var b strings.Builder
		b.WriteString(msg)
		b.WriteString(": ")
		b.WriteString(names)
		return b.String()
	}
	return msg
}

type holder struct{ tr Translator }

var current = atomic.NewPointer(&holder{tr: dictTranslator{lang: "en"}})

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	current.Store(&holder{tr: dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(&holder{tr: tr})
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	return current.Load().tr.Message(code, data)
}
