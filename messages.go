package vaultcrypt

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a transaction failure for reporting
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindWrongPassword
	KindNotEncrypted
	KindAlreadyEncrypted
	KindAttachmentResolution
	KindStorage
	KindCorruptEnvelope
	KindPartialCommit
	KindBusy
	KindCanceled
	KindInvalidInput
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindWrongPassword:
		return "wrong-password"
	case KindNotEncrypted:
		return "not-encrypted"
	case KindAlreadyEncrypted:
		return "already-encrypted"
	case KindAttachmentResolution:
		return "attachment-resolution"
	case KindStorage:
		return "storage"
	case KindCorruptEnvelope:
		return "corrupt-envelope"
	case KindPartialCommit:
		return "partial-commit"
	case KindBusy:
		return "busy"
	case KindCanceled:
		return "canceled"
	case KindInvalidInput:
		return "invalid-input"
	default:
		return "unknown"
	}
}

// KindOf maps err onto the failure taxonomy. Partial commits are checked
// first because they wrap the storage error that caused them.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case IsPartialCommitError(err):
		return KindPartialCommit
	case errors.Is(err, ErrWrongPassword), IsAuthenticationError(err):
		return KindWrongPassword
	case errors.Is(err, ErrNotEncrypted):
		return KindNotEncrypted
	case errors.Is(err, ErrAlreadyEncrypted):
		return KindAlreadyEncrypted
	case errors.Is(err, ErrTransactionInProgress):
		return KindBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrCorruptEnvelope), errors.Is(err, ErrCorruptData), IsCorruptionError(err):
		return KindCorruptEnvelope
	case IsResolutionError(err), errors.Is(err, ErrAttachmentNotFound):
		return KindAttachmentResolution
	case IsStorageError(err):
		return KindStorage
	case IsValidationError(err), errors.Is(err, ErrEmptyPassword):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

// Language selects the message catalog
type Language string

const (
	LangEnglish Language = "en"
	LangChinese Language = "zh"
)

// ParseLanguage returns the catalog for s, falling back to English
func ParseLanguage(s string) Language {
	switch Language(s) {
	case LangChinese, "zh-CN", "zh-cn", "zh_CN":
		return LangChinese
	default:
		return LangEnglish
	}
}

type catalog struct {
	kinds          map[ErrorKind]string
	encryptSuccess string
	decryptSuccess string
	encryptFailed  string
	decryptFailed  string
	noPassword     string
}

var catalogs = map[Language]catalog{
	LangEnglish: {
		kinds: map[ErrorKind]string{
			KindUnknown:              "Operation failed",
			KindWrongPassword:        "Wrong password",
			KindNotEncrypted:         "File is not encrypted",
			KindAlreadyEncrypted:     "File is already encrypted",
			KindAttachmentResolution: "Attachment could not be found",
			KindStorage:              "Could not read or write the vault",
			KindCorruptEnvelope:      "Encrypted file is damaged",
			KindPartialCommit:        "Operation was interrupted; some attachments were not written",
			KindBusy:                 "File is already being processed",
			KindCanceled:             "Operation canceled; nothing was changed",
			KindInvalidInput:         "Invalid input",
		},
		encryptSuccess: "File encrypted (%d attachments)",
		decryptSuccess: "File decrypted (%d attachments)",
		encryptFailed:  "Encryption failed",
		decryptFailed:  "Decryption failed",
		noPassword:     "No password entered",
	},
	LangChinese: {
		kinds: map[ErrorKind]string{
			KindUnknown:              "操作失败",
			KindWrongPassword:        "密码错误",
			KindNotEncrypted:         "文件未加密",
			KindAlreadyEncrypted:     "文件已加密",
			KindAttachmentResolution: "找不到附件",
			KindStorage:              "无法读写仓库文件",
			KindCorruptEnvelope:      "加密文件已损坏",
			KindPartialCommit:        "操作中断，部分附件尚未写入",
			KindBusy:                 "文件正在处理中",
			KindCanceled:             "操作已取消，未做任何修改",
			KindInvalidInput:         "输入无效",
		},
		encryptSuccess: "文件已加密（共 %d 个附件）",
		decryptSuccess: "文件已解密（共 %d 个附件）",
		encryptFailed:  "加密失败",
		decryptFailed:  "解密失败",
		noPassword:     "未输入密码",
	},
}

func catalogFor(lang Language) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[LangEnglish]
}

// Message returns the localized message for the kind of err
func Message(err error, lang Language) string {
	if errors.Is(err, ErrEmptyPassword) {
		return catalogFor(lang).noPassword
	}
	return catalogFor(lang).kinds[KindOf(err)]
}

// FailureMessage prefixes the localized kind message with the failed operation
func FailureMessage(op Operation, err error, lang Language) string {
	c := catalogFor(lang)
	prefix := c.encryptFailed
	if op == OpDecrypt {
		prefix = c.decryptFailed
	}
	return fmt.Sprintf("%s: %s", prefix, Message(err, lang))
}

// SuccessMessage returns the localized completion notice for a result
func SuccessMessage(r *Result, lang Language) string {
	c := catalogFor(lang)
	if r.Operation == OpDecrypt {
		return fmt.Sprintf(c.decryptSuccess, len(r.Attachments))
	}
	return fmt.Sprintf(c.encryptSuccess, len(r.Attachments))
}
