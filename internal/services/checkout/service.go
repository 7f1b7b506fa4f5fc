package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/config"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/enums"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/rules"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/wayforpay"
)

var (
	ErrInvalidPlan   = errors.New("invalid plan type")
	ErrInvalidUserID = errors.New("invalid user id")
)

// Mode selects who drives the payment page: a hosted redirect or the
// embedded widget. The mode changes the order-reference prefix and the
// recorded attempt status; the signed payload is identical.
const (
	ModeRedirect = "redirect"
	ModeWidget   = "widget"
)

const regularModeMonthly = "monthly"

// AttemptCreator records the initiated attempt before the user is handed to
// the gateway.
type AttemptCreator interface {
	Create(ctx context.Context, orderReference string, userID int64, planType string, amount int, currency, status string) (postgres.PaymentAttemptRecord, error)
}

type Service struct {
	gateway  config.GatewayConfig
	billing  config.BillingConfig
	public   config.PublicConfig
	codec    wayforpay.Codec
	attempts AttemptCreator
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(cfg config.Config, attempts AttemptCreator, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		gateway:  cfg.Gateway,
		billing:  cfg.Billing,
		public:   cfg.Public,
		codec:    wayforpay.NewCodec(cfg.Gateway.SecretKey, wayforpay.ParseMissingFieldMode(cfg.Gateway.MissingFieldMode)),
		attempts: attempts,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// Intent is everything the caller needs to start the payment: where to post
// and the signed form fields. For widget mode the same fields feed the
// embedded widget's pay() call.
type Intent struct {
	OrderReference string          `json:"orderReference"`
	CheckoutURL    string          `json:"checkoutUrl"`
	Fields         *CheckoutFields `json:"fields"`
}

// CheckoutFields uses the gateway's own wire names so the front end can pass
// the object through untouched.
type CheckoutFields struct {
	MerchantAccount    string   `json:"merchantAccount"`
	MerchantDomainName string   `json:"merchantDomainName"`
	MerchantSignature  string   `json:"merchantSignature"`
	OrderReference     string   `json:"orderReference"`
	OrderDate          int64    `json:"orderDate"`
	Amount             string   `json:"amount"`
	Currency           string   `json:"currency"`
	ProductName        []string `json:"productName"`
	ProductCount       []int    `json:"productCount"`
	ProductPrice       []string `json:"productPrice"`
	ClientAccountID    string   `json:"clientAccountId"`
	ServiceURL         string   `json:"serviceUrl"`
	ReturnURL          string   `json:"returnUrl,omitempty"`
	RegularOn          int      `json:"regularOn,omitempty"`
	RegularMode        string   `json:"regularMode,omitempty"`
	RegularAmount      string   `json:"regularAmount,omitempty"`
	RegularCount       string   `json:"regularCount,omitempty"`
	DateNext           string   `json:"dateNext,omitempty"`
}

// CreateIntent builds a signed purchase request for the given user and plan
// and records the attempt. The order reference embeds the user id so the
// webhook can recover identity even when the gateway omits clientAccountId.
func (s *Service) CreateIntent(ctx context.Context, userID int64, planType, mode string) (Intent, error) {
	if userID <= 0 {
		return Intent{}, ErrInvalidUserID
	}
	if !enums.ValidPlanType(planType) {
		return Intent{}, fmt.Errorf("%w: %q", ErrInvalidPlan, planType)
	}

	now := s.now()
	prefix := referencePrefix(planType, mode)
	ref := wayforpay.NewOrderReference(prefix, userID, now)

	amount := s.billing.SinglePrice
	product := s.billing.SingleProduct
	if planType == enums.PlanSubscription {
		amount = s.billing.SubscriptionPrice
		product = s.billing.SubscriptionProduct
	}
	amountToken := strconv.Itoa(amount)

	fields := &CheckoutFields{
		MerchantAccount:    s.gateway.MerchantAccount,
		MerchantDomainName: s.gateway.MerchantDomain,
		OrderReference:     ref,
		OrderDate:          now.Unix(),
		Amount:             amountToken,
		Currency:           s.billing.Currency,
		ProductName:        []string{product},
		ProductCount:       []int{1},
		ProductPrice:       []string{amountToken},
		ClientAccountID:    strconv.FormatInt(userID, 10),
		ServiceURL:         s.public.BackendBaseURL + "/api/pay/wayforpay-webhook",
		ReturnURL:          s.public.FrontendBaseURL + "/payment-result",
	}

	sig := wayforpay.PurchaseFields{
		MerchantAccount: fields.MerchantAccount,
		MerchantDomain:  fields.MerchantDomainName,
		OrderReference:  ref,
		OrderDate:       strconv.FormatInt(fields.OrderDate, 10),
		Amount:          amountToken,
		Currency:        fields.Currency,
		ProductName:     product,
		ProductCount:    "1",
		ProductPrice:    amountToken,
	}

	if planType == enums.PlanSubscription {
		today := now.In(s.loc)
		dateNext := rules.AddMonthClamped(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC))

		fields.RegularOn = 1
		fields.RegularMode = regularModeMonthly
		fields.RegularAmount = amountToken
		fields.DateNext = dateNext.Format("02.01.2006")
		if s.gateway.RegularCount > 0 {
			fields.RegularCount = strconv.Itoa(s.gateway.RegularCount)
		}

		sig.SignRegular = s.gateway.SignRegularFields
		sig.RegularAmount = fields.RegularAmount
		sig.RegularMode = fields.RegularMode
		sig.RegularCount = fields.RegularCount
		sig.RegularStartDate = fields.DateNext
	}

	fields.MerchantSignature = s.codec.PurchaseSignature(sig)

	status := "created"
	if mode == ModeWidget {
		status = "widget_params_generated"
	}
	if _, err := s.attempts.Create(ctx, ref, userID, planType, amount, s.billing.Currency, status); err != nil {
		return Intent{}, fmt.Errorf("record payment attempt: %w", err)
	}

	s.logger.Info("checkout intent created",
		zap.Int64("user_id", userID),
		zap.String("plan_type", planType),
		zap.String("order_reference", ref),
		zap.String("mode", mode))

	return Intent{
		OrderReference: ref,
		CheckoutURL:    s.gateway.CheckoutURL,
		Fields:         fields,
	}, nil
}

func referencePrefix(planType, mode string) string {
	widget := mode == ModeWidget
	if planType == enums.PlanSubscription {
		if widget {
			return wayforpay.PrefixWidgetSubscription
		}
		return wayforpay.PrefixSubscription
	}
	if widget {
		return wayforpay.PrefixWidgetSingle
	}
	return wayforpay.PrefixSingle
}
