// Package http is the driving HTTP adapter: Fiber handlers in front of the
// coordinator, account service and reports.
package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fintrackhq/fintrack/internal/app/ledger/domain"
	"github.com/fintrackhq/fintrack/internal/app/ledger/usecase"
)

type Server struct {
	coordinator *usecase.Coordinator
	accounts    *usecase.AccountService
	reports     *usecase.Reports
	log         zerolog.Logger
}

func NewServer(coordinator *usecase.Coordinator, accounts *usecase.AccountService, reports *usecase.Reports, log zerolog.Logger) *Server {
	return &Server{
		coordinator: coordinator,
		accounts:    accounts,
		reports:     reports,
		log:         log,
	}
}

// RegisterRoutes mounts all API routes behind the auth middleware.
func (s *Server) RegisterRoutes(app *fiber.App, authMW fiber.Handler) {
	api := app.Group("/api", authMW)

	api.Get("/accounts", s.listAccounts)
	api.Post("/accounts", s.createAccount)
	api.Get("/accounts/total-balance", s.totalBalance)
	api.Get("/accounts/:id", s.getAccount)
	api.Put("/accounts/:id", s.updateAccount)
	api.Delete("/accounts/:id", s.deleteAccount)

	api.Get("/transactions", s.listTransactions)
	api.Post("/transactions", s.createTransaction)
	api.Get("/transactions/by-category", s.expensesByCategory)
	api.Get("/transactions/:id", s.getTransaction)
	api.Put("/transactions/:id", s.updateTransaction)
	api.Delete("/transactions/:id", s.deleteTransaction)

	api.Get("/dashboard/summary", s.summary)
	api.Get("/dashboard/monthly-report", s.monthlyReport)
}

// fail maps domain errors onto HTTP statuses. Anything unclassified is a
// server error and gets logged with its cause.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrDestinationAccountMissing),
		errors.Is(err, domain.ErrSameAccountTransfer),
		errors.Is(err, domain.ErrInvalidTransactionKind),
		errors.Is(err, domain.ErrAmountMustBePositive),
		errors.Is(err, domain.ErrAmountPrecision),
		errors.Is(err, domain.ErrImmutableField):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrAccountHasTransactions),
		errors.Is(err, domain.ErrDuplicateReference):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return int64(id), nil
}

func authed(c *fiber.Ctx) (uuid.UUID, error) {
	uid, ok := userID(c)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return uid, nil
}

func (s *Server) listAccounts(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	accounts, err := s.accounts.List(c.UserContext(), uid)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toAccountResponses(accounts))
}

func (s *Server) getAccount(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	account, err := s.accounts.Get(c.UserContext(), uid, id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toAccountResponse(account))
}

func (s *Server) createAccount(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	account, err := s.accounts.Create(c.UserContext(), uid, usecase.CreateAccountRequest{
		Name:    req.Name,
		Type:    req.Type,
		Balance: req.Balance,
		Color:   req.Color,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toAccountResponse(account))
}

func (s *Server) updateAccount(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	account, err := s.accounts.Update(c.UserContext(), uid, id, usecase.UpdateAccountRequest{
		Name:    req.Name,
		Type:    req.Type,
		Balance: req.Balance,
		Color:   req.Color,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toAccountResponse(account))
}

func (s *Server) deleteAccount(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(c.UserContext(), uid, id); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) totalBalance(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	total, err := s.accounts.TotalBalance(c.UserContext(), uid)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"totalBalance": total})
}

func (s *Server) listTransactions(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}

	filter := usecase.ListFilter{}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid from date")
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid to date")
		}
		filter.To = &to
	}
	if raw := c.QueryInt("accountId"); raw > 0 {
		accountID := int64(raw)
		filter.AccountID = &accountID
	}
	filter.Limit = c.QueryInt("limit")

	views, err := s.coordinator.List(c.UserContext(), uid, filter)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(views)
}

func (s *Server) getTransaction(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	view, err := s.coordinator.Get(c.UserContext(), uid, id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(view)
}

func (s *Server) createTransaction(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	var req createTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	kind, err := domain.ParseKind(req.Type)
	if err != nil {
		return s.fail(c, err)
	}

	create := usecase.CreateRequest{
		AccountID:       req.AccountID,
		ToAccountID:     req.ToAccountID,
		Description:     req.Description,
		Category:        req.Category,
		Kind:            kind,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate,
		Notes:           req.Notes,
	}
	if req.RefID != "" {
		refID, err := uuid.Parse(req.RefID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid refId")
		}
		create.RefID = refID
	}

	view, err := s.coordinator.Create(c.UserContext(), uid, create)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (s *Server) updateTransaction(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	view, err := s.coordinator.Update(c.UserContext(), uid, id, usecase.UpdateRequest{
		Description:     req.Description,
		Category:        req.Category,
		TransactionDate: req.TransactionDate,
		Notes:           req.Notes,
		Amount:          req.Amount,
		Kind:            req.Type,
		AccountID:       req.AccountID,
		ToAccountID:     req.ToAccountID,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(view)
}

func (s *Server) deleteTransaction(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.coordinator.Delete(c.UserContext(), uid, id); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) expensesByCategory(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	month := c.QueryInt("month")
	year := c.QueryInt("year")
	if month < 1 || month > 12 || year < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "month and year are required")
	}

	rows, err := s.reports.ExpensesByCategory(c.UserContext(), uid, time.Month(month), year)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(rows)
}

func (s *Server) monthlyReport(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	month := c.QueryInt("month")
	year := c.QueryInt("year")
	if month < 1 || month > 12 || year < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "month and year are required")
	}

	report, err := s.reports.MonthlyReport(c.UserContext(), uid, time.Month(month), year)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(report)
}

func (s *Server) summary(c *fiber.Ctx) error {
	uid, err := authed(c)
	if err != nil {
		return err
	}
	summary, err := s.reports.Summary(c.UserContext(), uid)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(summary)
}
