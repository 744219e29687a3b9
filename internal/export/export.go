// Package export renders a ledger snapshot as a downloadable file.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"kakeibo/internal/core"
)

// Encoder is one export format.
type Encoder interface {
	Encode(w io.Writer, txs []core.Transaction) error
	ContentType() string
	Extension() string
}

var ErrUnknownFormat = fmt.Errorf("%w: unknown export format", core.ErrValidationFailed)

// ForFormat returns the encoder for "yaml" or "xlsx".
func ForFormat(name string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml", "":
		return YAMLEncoder{}, nil
	case "xlsx", "excel":
		return XLSXEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Filename builds the download name for an export taken at now.
func Filename(enc Encoder, now time.Time) string {
	return "kakeibo_" + now.Format("20060102_150405") + "." + enc.Extension()
}

// sorted returns txs oldest first. Same-day rows keep their order.
func sorted(txs []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}
