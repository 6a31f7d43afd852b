package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bazarche-storefront/api/controllers"
	"github.com/angelmondragon/bazarche-storefront/api/middleware"
	"github.com/angelmondragon/bazarche-storefront/pkg/config"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

// Params carry the router's collaborators. Metrics and Redis are optional.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Sessions middleware.SessionResolver
	Metrics  http.Handler
	Redis    controllers.Pinger
}

// anyAdmin admits every admin holding a permission set.
var anyAdmin middleware.Capability = func(_ models.AdminPermissions) bool { return true }

func NewRouter(params Params) http.Handler {
	cfg, logg := params.Config, params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Redis))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, params.Sessions, logg))
		r.Use(middleware.ClientKey(cfg.LoginRateLimit))

		r.Route("/store", func(r chi.Router) {
			r.Get("/", controllers.StoreGet(logg))
			r.With(middleware.RequireCapability(anyAdmin, logg)).Put("/", controllers.StoreRename(logg))
		})

		r.Get("/notifications", controllers.NotificationsDrain(logg))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", controllers.AuthLogin(logg))
			r.Post("/logout", controllers.AuthLogout(logg))
			r.Post("/register", controllers.AuthRegister(logg))
			r.Get("/rate-limit", controllers.AuthRateLimitStatus(logg))
			r.Get("/me", controllers.AuthMe(logg))
			r.Get("/security-question", controllers.AuthSecurityQuestion(logg))
			r.Post("/reset-password", controllers.AuthResetPassword(logg))
			r.With(middleware.RequireUser(logg)).Put("/password", controllers.AuthChangePassword(logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(logg))
			r.Get("/by-custom-id/{customId}", controllers.ProductByCustomID(logg))
			r.Get("/{productId}", controllers.ProductGet(logg))
			r.Get("/{productId}/comments", controllers.CommentsForProduct(logg))
			r.Post("/{productId}/comments", controllers.CommentCreate(logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(middleware.ManageProducts, logg))
				r.Post("/", controllers.ProductCreate(logg))
				r.Patch("/{productId}", controllers.ProductUpdate(logg))
				r.Delete("/{productId}", controllers.ProductDelete(logg))
			})
		})

		r.Post("/comments/{commentId}/replies", controllers.ReplyCreate(logg))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoriesList(logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(middleware.ManageCategories, logg))
				r.Post("/", controllers.CategoryCreate(logg))
				r.Put("/{categoryId}", controllers.CategoryRename(logg))
				r.Delete("/{categoryId}", controllers.CategoryDelete(logg))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(logg))
			r.Delete("/", controllers.CartClear(logg))
			r.Get("/totals", controllers.CartTotals(logg))
			r.Post("/items", controllers.CartAddItem(logg))
			r.Put("/items/{productId}", controllers.CartUpdateItem(logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(logg))
			r.Post("/gift-code", controllers.CartApplyGiftCode(logg))
		})

		r.Route("/gift-codes", func(r chi.Router) {
			r.Use(middleware.RequireCapability(middleware.ManageGiftCodes, logg))
			r.Get("/", controllers.GiftCodesList(logg))
			r.Post("/", controllers.GiftCodeCreate(logg))
			r.Delete("/{giftCodeId}", controllers.GiftCodeDelete(logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireCapability(middleware.ManageUsers, logg))
			r.Get("/", controllers.UsersList(logg))
			r.Delete("/{userId}", controllers.UserDelete(logg))
			r.Post("/{userId}/ban", controllers.UserBan(logg))
			r.Post("/{userId}/unban", controllers.UserUnban(logg))
			r.Post("/{userId}/admin", controllers.UserPromote(logg))
			r.Patch("/{userId}/permissions", controllers.UserPermissions(logg))
			r.Put("/{userId}/password", controllers.UserResetPassword(logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.With(middleware.RequireUser(logg)).Post("/checkout", controllers.Checkout(logg))
			r.With(middleware.RequireCapability(middleware.ViewPurchases, logg)).Get("/", controllers.PurchasesList(logg))
		})

		r.Route("/shipping-addresses", func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Get("/", controllers.ShippingAddressesList(logg))
			r.Post("/", controllers.ShippingAddressCreate(logg))
			r.Put("/{addressId}", controllers.ShippingAddressUpdate(logg))
			r.Delete("/{addressId}", controllers.ShippingAddressDelete(logg))
			r.Post("/{addressId}/default", controllers.ShippingAddressSetDefault(logg))
		})

		r.With(middleware.RequireCapability(middleware.ManageProducts, logg)).
			Post("/uploads/images", controllers.UploadImage(logg))
	})

	return r
}
