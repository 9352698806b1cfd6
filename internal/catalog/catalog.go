package catalog

import "github.com/MilkyWatch/StockBox/internal/models"

// Фиксированный каталог отслеживаемых товаров. Статическая конфигурация,
// в рантайме не меняется.
var products = []models.Product{
	{Name: "Amul Kool Protein Milkshake | Chocolate, 180 mL | Pack of 30", Alias: "amul-kool-protein-milkshake-or-chocolate-180-ml-or-pack-of-30", Category: "Milkshakes & Shakes"},
	{Name: "Amul Kool Protein Milkshake | Arabica Coffee, 180 mL | Pack of 8", Alias: "amul-kool-protein-milkshake-or-arabica-coffee-180-ml-or-pack-of-8", Category: "Milkshakes & Shakes"},
	{Name: "Amul Kool Protein Milkshake | Arabica Coffee, 180 mL | Pack of 30", Alias: "amul-kool-protein-milkshake-or-arabica-coffee-180-ml-or-pack-of-30", Category: "Milkshakes & Shakes"},
	{Name: "Amul Kool Protein Milkshake | Kesar, 180 mL | Pack of 8", Alias: "amul-kool-protein-milkshake-or-kesar-180-ml-or-pack-of-8", Category: "Milkshakes & Shakes"},
	{Name: "Amul Kool Protein Milkshake | Kesar, 180 mL | Pack of 30", Alias: "amul-kool-protein-milkshake-or-kesar-180-ml-or-pack-of-30", Category: "Milkshakes & Shakes"},
	{Name: "Amul Kool Protein Milkshake | Vanilla, 180 mL | Pack of 8", Alias: "amul-kool-protein-milkshake-or-vanilla-180-ml-or-pack-of-8", Category: "Milkshakes & Shakes"},
	{Name: "Amul Kool Protein Milkshake | Vanilla, 180 mL | Pack of 30", Alias: "amul-kool-protein-milkshake-or-vanilla-180-ml-or-pack-of-30", Category: "Milkshakes & Shakes"},
	{Name: "Amul High Protein Blueberry Shake, 200 mL | Pack of 30", Alias: "amul-high-protein-blueberry-shake-200-ml-or-pack-of-30", Category: "Milkshakes & Shakes"},
	{Name: "Amul High Protein Plain Lassi, 200 mL | Pack of 30", Alias: "amul-high-protein-plain-lassi-200-ml-or-pack-of-30", Category: "Lassi & Buttermilk"},
	{Name: "Amul High Protein Rose Lassi, 200 mL | Pack of 30", Alias: "amul-high-protein-rose-lassi-200-ml-or-pack-of-30", Category: "Lassi & Buttermilk"},
	{Name: "Amul High Protein Buttermilk, 200 mL | Pack of 30", Alias: "amul-high-protein-buttermilk-200-ml-or-pack-of-30", Category: "Lassi & Buttermilk"},
	{Name: "Amul High Protein Milk, 250 mL | Pack of 8", Alias: "amul-high-protein-milk-250-ml-or-pack-of-8", Category: "Milk"},
	{Name: "Amul High Protein Milk, 250 mL | Pack of 32", Alias: "amul-high-protein-milk-250-ml-or-pack-of-32", Category: "Milk"},
	{Name: "Amul High Protein Paneer, 400 g | Pack of 24", Alias: "amul-high-protein-paneer-400-g-or-pack-of-24", Category: "Paneer"},
	{Name: "Amul High Protein Paneer, 400 g | Pack of 2", Alias: "amul-high-protein-paneer-400-g-or-pack-of-2", Category: "Paneer"},
	{Name: "Amul Whey Protein Gift Pack, 32 g | Pack of 10 sachets", Alias: "amul-whey-protein-gift-pack-32-g-or-pack-of-10-sachets", Category: "Whey Protein (Sachets)"},
	{Name: "Amul Whey Protein, 32 g | Pack of 30 Sachets", Alias: "amul-whey-protein-32-g-or-pack-of-30-sachets", Category: "Whey Protein (Sachets)"},
	{Name: "Amul Whey Protein Pack, 32 g | Pack of 60 Sachets", Alias: "amul-whey-protein-32-g-or-pack-of-60-sachets", Category: "Whey Protein (Sachets)"},
	{Name: "Amul Chocolate Whey Protein Gift Pack, 34 g | Pack of 10 sachets", Alias: "amul-chocolate-whey-protein-gift-pack-34-g-or-pack-of-10-sachets", Category: "Whey Protein (Sachets)"},
	{Name: "Amul Chocolate Whey Protein, 34 g | Pack of 30 sachets", Alias: "amul-chocolate-whey-protein-34-g-or-pack-of-30-sachets", Category: "Whey Protein (Sachets)"},
	{Name: "Amul Chocolate Whey Protein, 34 g | Pack of 60 sachets", Alias: "amul-chocolate-whey-protein-34-g-or-pack-of-60-sachets", Category: "Whey Protein (Sachets)"},
}

// Короткие имена для текста уведомлений.
var displayNames = map[string]string{
	"Amul Kool Protein Milkshake | Chocolate, 180 mL | Pack of 30":      "Chocolate Milkshake 180mL | Pack of 30",
	"Amul Kool Protein Milkshake | Arabica Coffee, 180 mL | Pack of 8":  "Coffee Milkshake 180mL | Pack of 8",
	"Amul Kool Protein Milkshake | Arabica Coffee, 180 mL | Pack of 30": "Coffee Milkshake 180mL | Pack of 30",
	"Amul Kool Protein Milkshake | Kesar, 180 mL | Pack of 8":           "Kesar Milkshake 180mL | Pack of 8",
	"Amul Kool Protein Milkshake | Kesar, 180 mL | Pack of 30":          "Kesar Milkshake 180mL | Pack of 30",
	"Amul Kool Protein Milkshake | Vanilla, 180 mL | Pack of 8":         "Vanilla Milkshake 180mL | Pack of 8",
	"Amul Kool Protein Milkshake | Vanilla, 180 mL | Pack of 30":        "Vanilla Milkshake 180mL | Pack of 30",
	"Amul High Protein Blueberry Shake, 200 mL | Pack of 30":            "Blueberry Shake 200mL | Pack of 30",
	"Amul High Protein Plain Lassi, 200 mL | Pack of 30":                "Plain Lassi 200mL | Pack of 30",
	"Amul High Protein Rose Lassi, 200 mL | Pack of 30":                 "Rose Lassi 200mL | Pack of 30",
	"Amul High Protein Buttermilk, 200 mL | Pack of 30":                 "Buttermilk 200mL | Pack of 30",
	"Amul High Protein Milk, 250 mL | Pack of 8":                        "Milk 250mL | Pack of 8",
	"Amul High Protein Milk, 250 mL | Pack of 32":                       "Milk 250mL | Pack of 32",
	"Amul High Protein Paneer, 400 g | Pack of 24":                      "Paneer 400g | Pack of 24",
	"Amul High Protein Paneer, 400 g | Pack of 2":                       "Paneer 400g | Pack of 2",
	"Amul Whey Protein Gift Pack, 32 g | Pack of 10 sachets":            "Whey Protein 32g | Pack of 10 sachets",
	"Amul Whey Protein, 32 g | Pack of 30 Sachets":                      "Whey Protein 32g | Pack of 30 Sachets",
	"Amul Whey Protein Pack, 32 g | Pack of 60 Sachets":                 "Whey Protein 32g | Pack of 60 Sachets",
	"Amul Chocolate Whey Protein Gift Pack, 34 g | Pack of 10 sachets":  "Chocolate Whey 34g | Pack of 10 sachets",
	"Amul Chocolate Whey Protein, 34 g | Pack of 30 sachets":            "Chocolate Whey 34g | Pack of 30 sachets",
	"Amul Chocolate Whey Protein, 34 g | Pack of 60 sachets":            "Chocolate Whey 34g | Pack of 60 sachets",
}

// Products returns the catalog in stable order. The returned slice is a copy.
func Products() []models.Product {
	out := make([]models.Product, len(products))
	copy(out, products)
	return out
}

// DisplayName возвращает короткое имя товара для сообщений.
func DisplayName(name string) string {
	if short, ok := displayNames[name]; ok {
		return short
	}
	return name
}

// ByName returns the catalog entry for a canonical name.
func ByName(name string) (models.Product, bool) {
	for _, p := range products {
		if p.Name == name {
			return p, true
		}
	}
	return models.Product{}, false
}
