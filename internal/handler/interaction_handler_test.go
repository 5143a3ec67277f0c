package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storefront/internal/model"
	"storefront/internal/service/order"
	"storefront/internal/service/storefront"
	"storefront/pkg/utils"
)

func interactionRouter(svc *MockStorefrontService, caller *model.Caller) *gin.Engine {
	h := NewInteractionHandler(svc)
	r := gin.New()
	if caller != nil {
		r.Use(withCaller(*caller))
	}
	r.POST("/interactions", h.Interact)
	r.POST("/dialogue/reply", h.DialogueReply)
	r.GET("/cart", h.GetCart)
	return r
}

func TestInteractionHandler_Interact(t *testing.T) {
	actionID := model.AddToCartAction("ShipA")

	tests := []struct {
		name     string
		body     string
		setup    func(*MockStorefrontService)
		status   int
		wantCode utils.ResponseCode
	}{
		{
			name: "dispatched",
			body: `{"action_id":"` + actionID + `"}`,
			setup: func(m *MockStorefrontService) {
				m.On("Interact", mock.Anything, member, actionID).
					Return(&storefront.Reply{Kind: model.ActionAddToCart, Quantity: 1}, nil)
			},
			status:   http.StatusOK,
			wantCode: utils.CodeSuccess,
		},
		{
			name:     "missing action id",
			body:     `{}`,
			setup:    func(m *MockStorefrontService) {},
			status:   http.StatusBadRequest,
			wantCode: utils.CodeInvalidParam,
		},
		{
			name:     "malformed body",
			body:     `{`,
			setup:    func(m *MockStorefrontService) {},
			status:   http.StatusBadRequest,
			wantCode: utils.CodeInvalidParam,
		},
		{
			name: "out of stock",
			body: `{"action_id":"` + actionID + `"}`,
			setup: func(m *MockStorefrontService) {
				m.On("Interact", mock.Anything, member, actionID).Return(nil, utils.ErrOutOfStock)
			},
			status:   http.StatusConflict,
			wantCode: utils.CodeOutOfStock,
		},
		{
			name: "persistence failure",
			body: `{"action_id":"` + actionID + `"}`,
			setup: func(m *MockStorefrontService) {
				m.On("Interact", mock.Anything, member, actionID).
					Return(nil, utils.WrapError(assert.AnError, utils.CodePersistence, "failed to write sale record"))
			},
			status:   http.StatusInternalServerError,
			wantCode: utils.CodePersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockStorefrontService)
			tt.setup(svc)
			r := interactionRouter(svc, &member)

			req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, int(tt.wantCode), decodeEnvelope(t, w).Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestInteractionHandler_NoCaller(t *testing.T) {
	r := interactionRouter(new(MockStorefrontService), nil)

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"action_id":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInteractionHandler_DialogueReply(t *testing.T) {
	svc := new(MockStorefrontService)
	svc.On("DialogueReply", mock.Anything, admin, "yes").
		Return(&order.Resolution{Prompt: model.DeliveryPrompt("GearB")}, nil).Once()
	svc.On("DialogueReply", mock.Anything, admin, "no").
		Return(nil, utils.ErrNoActiveDialogue).Once()
	r := interactionRouter(svc, &admin)

	req := httptest.NewRequest(http.MethodPost, "/dialogue/reply", strings.NewReader(`{"text":"yes"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), "GearB")

	req = httptest.NewRequest(http.MethodPost, "/dialogue/reply", strings.NewReader(`{"text":"no"}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int(utils.CodeNoActiveDialogue), decodeEnvelope(t, w).Code)
}

func TestInteractionHandler_GetCart(t *testing.T) {
	cart := model.NewCart(member.UserID)
	cart.Add(&model.Product{Name: "ShipA", PriceUEC: decimal.NewFromInt(10), InStock: true})

	svc := new(MockStorefrontService)
	svc.On("Cart", mock.Anything, member).Return(cart).Once()
	svc.On("Cart", mock.Anything, member).Return(nil).Once()
	r := interactionRouter(svc, &member)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), "ShipA")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.JSONEq(t, `{"items":[]}`, string(decodeEnvelope(t, w).Data))
}
