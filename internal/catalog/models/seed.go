package models

import "github.com/shopspring/decimal"

func stock(n int) *int { return &n }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// SeedProducts returns the sample catalog loaded by the seed command and
// used as the kiosk's offline fallback table.
func SeedProducts() []*Product {
	return []*Product{
		{ID: "FOOD001", Name: "Vada Pav", Price: price("25"), Category: "Street Food", Description: "Spicy potato fritter in a bun", Image: "/images/vada-pav.jpg", Stock: stock(50)},
		{ID: "FOOD002", Name: "Pav Bhaji", Price: price("60"), Category: "Street Food", Description: "Spicy vegetable curry served with buttered bread rolls", Image: "/images/pav-bhaji.jpg", Stock: stock(30)},
		{ID: "FOOD003", Name: "Dosa", Price: price("45"), Category: "South Indian", Description: "Crispy crepe served with sambar and chutney", Image: "/images/dosa.jpg", Stock: stock(40)},
		{ID: "FOOD004", Name: "Biryani", Price: price("120"), Category: "Main Course", Description: "Aromatic basmati rice with spiced chicken", Image: "/images/biryani.jpg", Stock: stock(25)},
		{ID: "FOOD005", Name: "Samosa", Price: price("15"), Category: "Snacks", Description: "Crispy pastry filled with spiced potatoes", Image: "/images/samosa.jpg", Stock: stock(100)},
		{ID: "FOOD006", Name: "Chole Bhature", Price: price("80"), Category: "North Indian", Description: "Chickpea curry with fried bread", Stock: stock(20)},
		{ID: "FOOD007", Name: "Masala Chai", Price: price("10"), Category: "Beverages", Description: "Spiced milk tea", Stock: stock(200)},
		{ID: "FOOD008", Name: "Paneer Tikka", Price: price("90"), Category: "Appetizers", Description: "Grilled cottage cheese cubes with spices", Stock: stock(35)},
		{ID: "ELEC001", Name: "Wireless Headphones", Price: price("79.99"), Category: "Electronics", Description: "Noise cancelling bluetooth headphones", Stock: stock(50)},
		{ID: "ELEC002", Name: "USB-C Cable", Price: price("12.99"), Category: "Electronics", Description: "Fast charging cable, 6ft", Stock: stock(200)},
		{ID: "ELEC003", Name: "Power Bank", Price: price("39.99"), Category: "Electronics", Description: "10000mAh portable charger", Stock: stock(75)},
	}
}
