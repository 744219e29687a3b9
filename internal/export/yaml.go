package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"kakeibo/internal/core"
)

type rowYAML struct {
	ID          string `yaml:"id"`
	Date        string `yaml:"date"`
	Type        string `yaml:"type"`
	Amount      string `yaml:"amount"`
	Currency    string `yaml:"currency"`
	Category    string `yaml:"category"`
	Description string `yaml:"description,omitempty"`
}

// YAMLEncoder writes a list of rows. Amounts are strings so no precision is
// lost to float parsing on the way back in.
type YAMLEncoder struct{}

func (YAMLEncoder) ContentType() string { return "application/yaml" }
func (YAMLEncoder) Extension() string   { return "yaml" }

func (YAMLEncoder) Encode(w io.Writer, txs []core.Transaction) error {
	out := make([]rowYAML, 0, len(txs))
	for _, tx := range sorted(txs) {
		out = append(out, rowYAML{
			ID:          tx.ID,
			Date:        tx.Date.String(),
			Type:        string(tx.Type),
			Amount:      core.AmountString(tx.Currency, tx.Amount),
			Currency:    tx.Currency,
			Category:    tx.Category,
			Description: tx.Description,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
