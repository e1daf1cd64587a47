package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/korawit-s/thriftmarket/internal/handlers"
	"github.com/korawit-s/thriftmarket/internal/middleware/auth"
	"github.com/korawit-s/thriftmarket/internal/models"
)

type Deps struct {
	JWTSecret       []byte
	UploadDir       string
	AuthHandler     *handlers.AuthHandler
	UserHandler     *handlers.UserHandler
	ProductHandler  *handlers.ProductHandler
	SearchHandler   *handlers.SearchHandler
	SellerHandler   *handlers.SellerHandler
	AdminHandler    *handlers.AdminHandler
	SettingsHandler *handlers.SettingsHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.Static("/uploads", d.UploadDir)

	requireAuth := auth.RequireAuth(d.JWTSecret)
	buyerOnly := auth.RequireRole(models.RoleBuyer)
	sellerOnly := auth.RequireRole(models.RoleSeller)
	adminOnly := auth.RequireRole(models.RoleAdmin)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)

	products := api.Group("/products")
	products.GET("", d.ProductHandler.ListProducts)
	products.GET("/categories", d.ProductHandler.ListCategories)
	products.GET("/search", d.SearchHandler.Search)
	products.GET("/:id", d.ProductHandler.GetProduct)

	users := api.Group("/users", requireAuth)
	users.GET("/me", d.UserHandler.GetProfile)
	users.PUT("/me", d.UserHandler.UpdateProfile)
	users.PUT("/me/password", d.UserHandler.ChangePassword)
	users.POST("/me/image", d.UserHandler.UploadProfileImage)
	users.POST("/me/profile-name", d.UserHandler.RequestProfileName)

	users.POST("/checkout", d.UserHandler.Checkout, buyerOnly)
	users.GET("/orders", d.UserHandler.ListOrders, buyerOnly)
	users.GET("/orders/:id", d.UserHandler.GetOrder, buyerOnly)

	users.POST("/problems", d.UserHandler.CreateProblem, buyerOnly)
	users.GET("/problems", d.UserHandler.ListProblems, buyerOnly)
	users.GET("/problems/:id", d.UserHandler.GetProblem, buyerOnly)
	users.POST("/problems/:id/messages", d.UserHandler.PostProblemMessage, buyerOnly)
	users.PUT("/problems/:id/close", d.UserHandler.CloseProblem, buyerOnly)

	sellers := api.Group("/sellers", requireAuth, sellerOnly)
	sellers.GET("/dashboard", d.SellerHandler.Dashboard)
	sellers.GET("/reports/sales", d.SellerHandler.SalesReport)

	sellers.GET("/products", d.SellerHandler.ListProducts)
	sellers.POST("/products", d.SellerHandler.CreateProduct)
	sellers.PUT("/products/:id", d.SellerHandler.UpdateProduct)
	sellers.DELETE("/products/:id", d.SellerHandler.DeleteProduct)

	sellers.GET("/orders", d.SellerHandler.ListOrders)
	sellers.GET("/orders/:id", d.SellerHandler.GetOrder)
	sellers.PUT("/orders/:id/status", d.SellerHandler.UpdateOrderStatus)
	sellers.PUT("/orders/:id/cancel", d.SellerHandler.CancelOrder)

	sellers.GET("/problems", d.SellerHandler.ListProblems)
	sellers.GET("/problems/:id", d.SellerHandler.GetProblem)
	sellers.POST("/problems/:id/messages", d.SellerHandler.ReplyProblem)
	sellers.PUT("/problems/:id/close", d.SellerHandler.CloseProblem)

	sellers.GET("/warnings", d.SellerHandler.ListWarnings)
	sellers.POST("/warnings/:id/appeal", d.SellerHandler.SubmitAppeal)

	admin := api.Group("/admin", requireAuth, adminOnly)
	admin.GET("/users", d.AdminHandler.ListUsers)
	admin.PUT("/sellers/:id/approve", d.AdminHandler.ApproveSeller)
	admin.PUT("/sellers/:id/reject", d.AdminHandler.RejectSeller)
	admin.PUT("/sellers/:id/ban", d.AdminHandler.BanSeller)
	admin.PUT("/sellers/:id/unban", d.AdminHandler.UnbanSeller)
	admin.GET("/sellers/banned", d.AdminHandler.ListBannedSellers)
	admin.PUT("/users/:id/profile-name/approve", d.AdminHandler.ApproveProfileName)
	admin.PUT("/users/:id/profile-name/cancel", d.AdminHandler.CancelProfileName)

	admin.POST("/warnings", d.AdminHandler.IssueWarning)
	admin.GET("/warnings", d.AdminHandler.ListWarnings)
	admin.GET("/appeals", d.AdminHandler.ListAppeals)
	admin.PUT("/appeals/:id", d.AdminHandler.ResolveAppeal)
	admin.GET("/complaints", d.AdminHandler.ListComplaints)
	admin.GET("/counts", d.AdminHandler.Counts)

	settings := api.Group("/settings")
	settings.GET("/logo", d.SettingsHandler.GetLogo)
	settings.POST("/logo", d.SettingsHandler.UploadLogo, requireAuth, adminOnly)
}
