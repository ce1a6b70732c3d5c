/*
Copyright 2025 Centra Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package centra

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraledger/centra/config"
	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/internal/notification"
	"github.com/centraledger/centra/internal/request"
	"github.com/centraledger/centra/model"
)

var gatewayTracer = otel.Tracer("centra.gateway")

// GatewayClient talks to the upstream payment gateway. The gateway is the
// source of truth for charge outcomes; nothing here retries on its behalf,
// callers re-verify instead.
type GatewayClient struct {
	baseURL   string
	secretKey string
}

func NewGatewayClient(cfg *config.GatewayConfig) *GatewayClient {
	return &GatewayClient{
		baseURL:   cfg.BaseUrl,
		secretKey: cfg.SecretKey,
	}
}

// GatewayInitResponse is the gateway's answer to a charge initialization.
type GatewayInitResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// GatewayCharge is a charge as the gateway reports it. Amounts arrive in
// minor units already.
type GatewayCharge struct {
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	AmountMinor int64     `json:"amount"`
	Currency    string    `json:"currency"`
	PaidAt      time.Time `json:"paid_at"`
	Channel     string    `json:"channel,omitempty"`
	Description string    `json:"description,omitempty"`
}

// GatewayEvent is the envelope of an inbound gateway webhook.
type GatewayEvent struct {
	Event string        `json:"event"`
	Data  GatewayCharge `json:"data"`
}

type gatewayEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (g *GatewayClient) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload *http.Request
	var err error

	if body != nil {
		buf, jsonErr := request.ToJsonReq(body)
		if jsonErr != nil {
			return jsonErr
		}
		payload, err = http.NewRequestWithContext(ctx, method, g.baseURL+path, buf)
	} else {
		payload, err = http.NewRequestWithContext(ctx, method, g.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	payload.Header.Set("Authorization", "Bearer "+g.secretKey)

	var envelope gatewayEnvelope
	resp, err := request.Call(payload, &envelope)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrUpstreamGateway, "Gateway unreachable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierror.NewAPIError(apierror.ErrUpstreamGateway,
			fmt.Sprintf("Gateway responded with status %d: %s", resp.StatusCode, envelope.Message), envelope.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return apierror.NewAPIError(apierror.ErrUpstreamGateway, "Gateway response could not be decoded", err)
		}
	}
	return nil
}

// Initialize opens a charge on the gateway and returns the authorization
// handoff for the paying user.
func (g *GatewayClient) Initialize(ctx context.Context, amountMinor int64, currency, reference, callbackURL string) (*GatewayInitResponse, error) {
	body := map[string]interface{}{
		"amount":       amountMinor,
		"currency":     currency,
		"reference":    reference,
		"callback_url": callbackURL,
	}
	var initResp GatewayInitResponse
	if err := g.call(ctx, http.MethodPost, "/transaction/initialize", body, &initResp); err != nil {
		return nil, errors.Wrap(err, "initializing gateway charge")
	}
	return &initResp, nil
}

// Verify asks the gateway for the authoritative state of a charge.
func (g *GatewayClient) Verify(ctx context.Context, reference string) (*GatewayCharge, error) {
	var charge GatewayCharge
	if err := g.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &charge); err != nil {
		return nil, errors.Wrap(err, "verifying gateway charge")
	}
	return &charge, nil
}

// VerifySignature checks the HMAC-SHA512 hex signature the gateway attaches
// to webhook deliveries.
func (g *GatewayClient) VerifySignature(payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(g.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// DepositRequest starts a gateway-backed deposit into an entity's balance.
type DepositRequest struct {
	UserID      string           `json:"user_id"`
	EntityType  model.EntityType `json:"entity_type"`
	AmountMinor int64            `json:"amount_minor"`
	Currency    string           `json:"currency"`
	Reference   string           `json:"reference"`
	Description string           `json:"description,omitempty"`
}

// InitiateDeposit records a pending external transaction and opens the
// charge on the gateway. The gateway reference is the idempotency key for
// the eventual ledger credit.
func (l *Centra) InitiateDeposit(ctx context.Context, req *DepositRequest) (*GatewayInitResponse, error) {
	ctx, span := gatewayTracer.Start(ctx, "Initiating Deposit", trace.WithAttributes(
		attribute.String("transaction.reference", req.Reference),
	))
	defer span.End()

	if req.UserID == "" || req.Reference == "" || req.AmountMinor <= 0 {
		err := fmt.Errorf("user id, reference and a positive amount are required")
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}
	if !req.EntityType.Valid() {
		err := fmt.Errorf("entity type must be company or employee")
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}
	if !model.IsSupportedCurrency(req.Currency) {
		err := fmt.Errorf("unsupported currency code %s", req.Currency)
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	txn := &model.ExternalTransaction{
		TransactionID: model.GenerateUUIDWithSuffix("ext"),
		Reference:     req.Reference,
		UserID:        req.UserID,
		EntityType:    req.EntityType,
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
		Status:        model.ExternalPending,
		Description:   req.Description,
		CreatedAt:     time.Now(),
	}
	if err := l.datasource.RecordExternalTransaction(ctx, txn); err != nil {
		span.RecordError(err)
		return nil, err
	}

	cfg, err := config.Fetch()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	initResp, err := l.gateway.Initialize(ctx, req.AmountMinor, req.Currency, req.Reference, cfg.Gateway.CallbackUrl)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Deposit initiated", trace.WithAttributes(
		attribute.String("transaction.id", txn.TransactionID),
	))
	return initResp, nil
}

// ConfirmDeposit verifies a charge with the gateway and, on success,
// credits the owning entity. Safe to call repeatedly; the ledger reference
// makes the credit idempotent.
func (l *Centra) ConfirmDeposit(ctx context.Context, reference string) (*model.ExternalTransaction, error) {
	ctx, span := gatewayTracer.Start(ctx, "Confirming Deposit", trace.WithAttributes(
		attribute.String("transaction.reference", reference),
	))
	defer span.End()

	charge, err := l.gateway.Verify(ctx, reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	txn, err := l.applyGatewayCharge(ctx, charge)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return txn, nil
}

// HandleGatewayWebhook processes an inbound gateway event. Deliveries with
// a bad signature are rejected before the payload is even parsed.
func (l *Centra) HandleGatewayWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := gatewayTracer.Start(ctx, "Handling Gateway Webhook")
	defer span.End()

	if !l.gateway.VerifySignature(payload, signature) {
		err := apierror.NewAPIError(apierror.ErrSignatureInvalid, "Webhook signature verification failed", signature)
		span.RecordError(err)
		return err
	}

	var event GatewayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Webhook payload could not be decoded", err)
	}

	span.AddEvent("Webhook verified", trace.WithAttributes(
		attribute.String("gateway.event", event.Event),
	))

	switch event.Event {
	case "charge.success":
		event.Data.Status = model.ExternalSuccess
		_, err := l.applyGatewayCharge(ctx, &event.Data)
		return err
	case "charge.failed":
		return l.datasource.UpdateExternalTransactionStatus(ctx, event.Data.Reference, model.ExternalFailed, event.Data.PaidAt)
	default:
		// Unknown events are acknowledged and dropped.
		return nil
	}
}

// applyGatewayCharge records the gateway verdict and credits the balance
// for successful charges.
func (l *Centra) applyGatewayCharge(ctx context.Context, charge *GatewayCharge) (*model.ExternalTransaction, error) {
	txn, err := l.datasource.GetExternalTransactionByRef(ctx, charge.Reference)
	if err != nil {
		return nil, err
	}

	if charge.Status != model.ExternalSuccess {
		if err := l.datasource.UpdateExternalTransactionStatus(ctx, charge.Reference, charge.Status, charge.PaidAt); err != nil {
			return nil, err
		}
		txn.Status = charge.Status
		return txn, nil
	}

	if err := l.datasource.UpdateExternalTransactionStatus(ctx, charge.Reference, model.ExternalSuccess, charge.PaidAt); err != nil {
		return nil, err
	}
	txn.Status = model.ExternalSuccess
	txn.PaidAt = charge.PaidAt

	_, _, err = l.UpdateBalance(ctx, &BalanceUpdate{
		EntityID:        txn.UserID,
		EntityType:      txn.EntityType,
		TransactionType: model.TypeDeposit,
		Reference:       txn.Reference,
		AmountMinor:     txn.AmountMinor,
		Currency:        txn.Currency,
		Purpose:         "gateway deposit",
	})
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrDuplicateReference {
			// Redelivered webhook; the credit already landed.
			return txn, nil
		}
		notification.NotifyError(err)
		return nil, err
	}
	return txn, nil
}
