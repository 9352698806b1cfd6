package catalog

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"

	"github.com/MilkyWatch/StockBox/internal/models"
)

type substoreSeedFile struct {
	Substores []substoreSeedEntry `yaml:"substores"`
}

type substoreSeedEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Alias    string `yaml:"alias"`
	Pincodes string `yaml:"pincodes"`
}

// LoadSubstoreSeed читает стартовый справочник substore. Pincodes в файле
// склеены запятыми, как их отдаёт витрина.
func LoadSubstoreSeed(path string) ([]models.Substore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read substore seed")
	}

	var f substoreSeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal substore seed")
	}

	out := make([]models.Substore, 0, len(f.Substores))
	for _, e := range f.Substores {
		out = append(out, models.Substore{
			ID:       e.ID,
			Name:     e.Name,
			Alias:    e.Alias,
			Pincodes: splitPincodes(e.Pincodes),
		})
	}
	return out, nil
}

func splitPincodes(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
