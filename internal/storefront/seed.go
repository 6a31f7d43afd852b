package storefront

import (
	"time"

	"github.com/angelmondragon/bazarche-storefront/internal/giftcodes"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

// SeedData is the catalog a fresh session starts with before the backend
// list arrives.
type SeedData struct {
	Products   []models.Product
	Categories []models.Category
	Users      []models.User
	GiftCodes  []models.GiftCode
}

func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

// DemoSeed returns the demo catalog, directory and gift codes.
func DemoSeed() SeedData {
	full := models.FullAdminPermissions()
	return SeedData{
		Categories: []models.Category{
			{ID: "1", Name: "گوشی هوشمند", CreatedAt: at("2023-01-10T08:00:00Z")},
			{ID: "2", Name: "لپ تاپ", CreatedAt: at("2023-01-10T08:05:00Z")},
			{ID: "3", Name: "لوازم جانبی", CreatedAt: at("2023-01-10T08:10:00Z")},
		},
		Products: []models.Product{
			{
				ID:                  "1",
				Name:                "گوشی هوشمند سامسونگ گلکسی A52",
				Price:               8500000,
				DiscountedPrice:     7200000,
				Description:         "گوشی هوشمند با صفحه نمایش AMOLED و دوربین چهارگانه",
				DetailedDescription: "این گوشی دارای صفحه نمایش 6.5 اینچی Super AMOLED با رزولوشن 1080x2400 پیکسل، دوربین اصلی 64 مگاپیکسلی، باتری 4500 میلی‌آمپر ساعت و پردازنده اسنپدراگون 720G است.",
				Images: []string{
					"https://dkstatics-public.digikala.com/digikala-products/3b80e5838f5ff024e54c3d128dcd11f859dc31be_1656426741.jpg",
					"https://dkstatics-public.digikala.com/digikala-products/073c9749b9bee4add3561584cd35e845d0fb2357_1656426748.jpg",
				},
				Category:  "گوشی هوشمند",
				CreatedAt: at("2023-01-15T10:30:00Z"),
				CustomID:  "samsung-a52",
			},
			{
				ID:                  "2",
				Name:                "لپ تاپ لنوو IdeaPad 3",
				Price:               22000000,
				DiscountedPrice:     20500000,
				Description:         "لپ تاپ مناسب برای کارهای روزمره و دانشجویی",
				DetailedDescription: "این لپ تاپ دارای پردازنده Core i5 نسل 11، حافظه رم 8 گیگابایت DDR4، حافظه داخلی 512 گیگابایت SSD و صفحه نمایش 15.6 اینچی با رزولوشن 1080p است.",
				Images: []string{
					"https://dkstatics-public.digikala.com/digikala-products/29f5a02ab5c9d82f0cf817d365a0dfb0da1211ea_1675854730.jpg",
				},
				Category:  "لپ تاپ",
				CreatedAt: at("2023-02-20T14:15:00Z"),
			},
			{
				ID:              "3",
				Name:            "هدفون بی سیم اپل AirPods Pro",
				Price:           9800000,
				DiscountedPrice: 9300000,
				Description:     "هدفون بی سیم با قابلیت حذف نویز محیط",
				Images: []string{
					"https://dkstatics-public.digikala.com/digikala-products/113639098.jpg",
				},
				Category:  "لوازم جانبی",
				CreatedAt: at("2023-03-05T09:45:00Z"),
				CustomID:  "airpods-pro",
			},
		},
		Users: []models.User{
			{
				ID: "1", Username: models.AdminUsername, Password: "admin123", IsAdmin: true, AdminPermissions: &full,
				SecurityQuestion: &models.SecurityQuestion{Question: "نام اولین معلم شما چه بود؟", Answer: "محمدی"},
				CanComment:       true,
			},
			{
				ID: "2", Username: "user1", Password: "password123",
				SecurityQuestion: &models.SecurityQuestion{Question: "نام اولین حیوان خانگی شما چه بود؟", Answer: "گربه"},
				CanComment:       true,
			},
		},
		GiftCodes: giftcodes.DefaultCodes(),
	}
}
