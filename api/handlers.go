package api

import (
	"encoding/json"
	"time"

	"encompass-agent/agent"
	"encompass-agent/encompass"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
}

type LoansRequest struct {
	FilterCriteriaJSON json.RawMessage `json:"filter_criteria_json" validate:"required"`
	LoanLimit          int             `json:"loan_limit" validate:"gte=0"`
}

type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry,omitempty"`
}

// Handler serves the documentation, loan and agent endpoints. Agent may be
// nil when no LLM is configured.
type Handler struct {
	docs     agent.Docs
	loans    agent.Loans
	agent    *agent.Agent
	validate *validator.Validate
}

func NewHandler(docs agent.Docs, loans agent.Loans, a *agent.Agent) *Handler {
	return &Handler{
		docs:     docs,
		loans:    loans,
		agent:    a,
		validate: validator.New(),
	}
}

func (h *Handler) parse(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return ErrBadRequest()
	}
	if err := h.validate.Struct(v); err != nil {
		return validationErrorFrom(err)
	}
	return nil
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	result, err := h.docs.RetrieveRelevant(c.UserContext(), req.Query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": result})
}

func (h *Handler) HandleListPages(c *fiber.Ctx) error {
	pages, err := h.docs.ListPages(c.UserContext())
	if err != nil {
		return err
	}
	if pages == nil {
		pages = []string{}
	}
	return c.JSON(fiber.Map{"pages": pages})
}

func (h *Handler) HandlePage(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return NewError(fiber.StatusBadRequest, "missing url parameter")
	}
	content, err := h.docs.PageContent(c.UserContext(), url)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": content})
}

func (h *Handler) HandleToken(c *fiber.Ctx) error {
	tok, err := h.loans.Token()
	if err != nil {
		return NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	})
}

func (h *Handler) HandleLoans(c *fiber.Ctx) error {
	var req LoansRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	query, err := encompass.ParseLoanQueryJSON(req.FilterCriteriaJSON)
	if err != nil {
		return err
	}
	raw, err := h.loans.FetchLoans(c.UserContext(), query, req.LoanLimit)
	if err != nil {
		return err
	}
	renamed, err := encompass.RenameFields(raw)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(renamed)
}

func (h *Handler) HandleFields(c *fiber.Ctx) error {
	return c.JSON(encompass.FieldMap())
}

func (h *Handler) HandleAsk(c *fiber.Ctx) error {
	if h.agent == nil {
		return NewError(fiber.StatusServiceUnavailable, "agent is not configured")
	}
	var req AskRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	answer, err := h.agent.Run(c.UserContext(), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"answer": answer})
}
