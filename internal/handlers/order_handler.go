package handlers

import (
	"errors"
	"log"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes for authenticated users.
// The /mine route must be registered before /:id.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/mine", h.HandleGetMyOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/pay", h.HandleConfirmPayment)
}

// RegisterAdminRoutes registers the admin-only order routes.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetAllOrders)
	orderRoutes.Put("/:id/deliver", h.HandleMarkDelivered)
}

// HandleCreateOrder validates a checkout request and creates an order for
// the authenticated user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create order request: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	order, err := h.service.CreateOrder(c.UserContext(), userID, req)
	if err != nil {
		return h.orderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetMyOrders returns the authenticated user's order history, newest
// first.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	orders, err := h.service.GetUserOrders(c.UserContext(), userID)
	if err != nil {
		return h.orderError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID returns a single order. Only the order's owner or an
// admin may read it.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.orderError(c, err)
	}
	if err := h.authorizeOwner(c, order); err != nil {
		return err
	}
	return c.JSON(order)
}

// HandleConfirmPayment applies a payment confirmation to an order. A
// repeated confirmation is a benign success: the order is returned
// unchanged and no side effects are re-applied.
func (h *OrderHandler) HandleConfirmPayment(c *fiber.Ctx) error {
	var result models.PaymentResult
	if err := c.BodyParser(&result); err != nil {
		log.Printf("Error parsing payment result: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	orderID := c.Params("id")
	existing, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		return h.orderError(c, err)
	}
	if err := h.authorizeOwner(c, existing); err != nil {
		return err
	}

	order, err := h.service.ConfirmPayment(c.UserContext(), orderID, result)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyPaid) {
			return c.JSON(order)
		}
		return h.orderError(c, err)
	}
	return c.JSON(order)
}

// HandleMarkDelivered marks a paid order as delivered. Admin only.
func (h *OrderHandler) HandleMarkDelivered(c *fiber.Ctx) error {
	order, err := h.service.MarkDelivered(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.orderError(c, err)
	}
	return c.JSON(order)
}

// HandleGetAllOrders returns every order. Admin only.
func (h *OrderHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders(c.UserContext())
	if err != nil {
		return h.orderError(c, err)
	}
	return c.JSON(orders)
}

// authorizeOwner rejects the request unless the caller owns the order or
// is an admin.
func (h *OrderHandler) authorizeOwner(c *fiber.Ctx, order *models.Order) error {
	userID, _ := c.Locals("user_id").(string)
	isAdmin, _ := c.Locals("is_admin").(bool)
	if order.UserID != userID && !isAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "You do not have access to this order",
		})
	}
	return nil
}

// orderError maps service errors onto HTTP statuses.
func (h *OrderHandler) orderError(c *fiber.Ctx, err error) error {
	var stockErr *services.StockConflictError
	var missingErr *services.ProductNotFoundError

	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.As(err, &stockErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message":    stockErr.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &missingErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message":    missingErr.Error(),
			"product_id": missingErr.ProductID,
		})
	case errors.Is(err, services.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Order not found",
		})
	case errors.Is(err, services.ErrNotPaid):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Order is not paid",
		})
	case errors.Is(err, services.ErrStoreTimeout):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Store temporarily unavailable, try again",
		})
	default:
		log.Printf("Order operation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not process order request",
		})
	}
}
