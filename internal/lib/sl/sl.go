// Package sl содержит вспомогательные атрибуты для логгера slog:
// ошибки и вывод внешнего процесса.
package sl

import (
	"log/slog"
	"strconv"
)

// MaxOutput — сколько байт вывода процесса попадает в одну запись лога.
const MaxOutput = 4 << 10

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
// nil превращается в пустую строку.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Output возвращает вывод процесса под ключом key, обрезанный до MaxOutput байт.
// Об обрезке сообщает суффикс с исходной длиной.
func Output(key string, b []byte) slog.Attr {
	if len(b) <= MaxOutput {
		return slog.String(key, string(b))
	}
	return slog.String(key, string(b[:MaxOutput])+"... ("+strconv.Itoa(len(b))+" bytes)")
}
