package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/service"
)

var nop = zerolog.Nop()

func newCtx(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func kind(k error, msg string) error { return &service.Error{Kind: k, Msg: msg} }

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", kind(service.ErrValidation, "bad"), http.StatusBadRequest, "bad"},
		{"not found", kind(service.ErrNotFound, "gone"), http.StatusNotFound, "gone"},
		{"conflict", kind(service.ErrConflict, "taken"), http.StatusConflict, "taken"},
		{"forbidden", kind(service.ErrForbidden, "no"), http.StatusForbidden, "no"},
		{"unauthorized", kind(service.ErrUnauthorized, "who"), http.StatusUnauthorized, "who"},
		{"http error", echo.NewHTTPError(http.StatusBadRequest, "invalid id"), http.StatusBadRequest, "invalid id"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "request timed out"},
		{"internal", errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newCtx(http.MethodGet, "/", "")
			require.NoError(t, respondError(c, nop, tc.err))
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.msg, decode(t, rec)["error"])
		})
	}
}

// ---- orders ----

type stubOrders struct {
	created service.CreateOrderInput
	patch   model.OrderPatch
	err     error
	order   *model.Order
}

func (s *stubOrders) Create(_ context.Context, in service.CreateOrderInput) (*model.Order, error) {
	s.created = in
	return s.order, s.err
}
func (s *stubOrders) List(context.Context, model.OrderFilter) ([]model.Order, error) {
	return nil, s.err
}
func (s *stubOrders) Get(context.Context, uint64) (*model.Order, error) { return s.order, s.err }
func (s *stubOrders) Update(_ context.Context, _ uint64, p model.OrderPatch) (*model.Order, error) {
	s.patch = p
	return s.order, s.err
}
func (s *stubOrders) SettlePoints(context.Context, uint64) (*model.Order, error) { return s.order, s.err }
func (s *stubOrders) Remove(context.Context, uint64) error                       { return s.err }

func TestCreateOrderBindsLines(t *testing.T) {
	stub := &stubOrders{order: &model.Order{ID: 3, Status: model.OrderPendingPayment}}
	h := NewOrderHandler(stub, time.Second, nop)
	body := `{"customer_name":"Lan","payment_method":"bank_transfer",
		"items":[{"product_id":1,"quantity":2,"unit_price":"45000"},{"product_id":2,"quantity":1,"unit_price":50000}]}`
	c, rec := newCtx(http.MethodPost, "/v1/orders", body)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, stub.created.Items, 2)
	assert.Equal(t, "45000", stub.created.Items[0].UnitPrice.String())
	assert.Equal(t, "50000", stub.created.Items[1].UnitPrice.String())
	assert.Equal(t, model.PaymentBankTransfer, *stub.created.PaymentMethod)
	assert.EqualValues(t, 3, decode(t, rec)["id"])
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	stub := &stubOrders{}
	h := NewOrderHandler(stub, time.Second, nop)
	c, rec := newCtx(http.MethodPost, "/v1/orders", `{"items":[]}`)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.created.Items)
}

func TestUpdateOrderPartialFailure(t *testing.T) {
	paid := &model.Order{ID: 9, Status: model.OrderPaid}
	stub := &stubOrders{err: &service.PartialFailureError{Order: paid, Cause: errors.New("deadlock")}}
	h := NewOrderHandler(stub, time.Second, nop)
	c, rec := newCtx(http.MethodPatch, "/v1/orders/9", `{"status":"paid"}`, "id", "9")

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OrderPaid, *stub.patch.Status)
	out := decode(t, rec)
	assert.NotEmpty(t, out["points_error"])
	assert.EqualValues(t, 9, out["order"].(map[string]any)["id"])
	assert.NotContains(t, rec.Body.String(), "deadlock")
}

func TestPartialFailureNotLoggedTwice(t *testing.T) {
	var buf bytes.Buffer
	paid := &model.Order{ID: 9, Status: model.OrderPaid}
	h := NewOrderHandler(&stubOrders{err: &service.PartialFailureError{Order: paid, Cause: errors.New("deadlock")}}, time.Second, zerolog.New(&buf))
	c, rec := newCtx(http.MethodPatch, "/v1/orders/9", `{"status":"paid"}`, "id", "9")

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String())
}

func TestOrderBadID(t *testing.T) {
	h := NewOrderHandler(&stubOrders{}, time.Second, nop)
	for _, id := range []string{"abc", "0", "-1"} {
		c, rec := newCtx(http.MethodGet, "/v1/orders/"+id, "", "id", id)
		require.NoError(t, h.Get(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}

// ---- rewards ----

type stubRewards struct {
	owner model.OwnerRef
	in    service.RedeemInput
}

func (s *stubRewards) Redeem(_ context.Context, o model.OwnerRef, in service.RedeemInput) (model.RewardTransaction, error) {
	s.owner, s.in = o, in
	return model.RewardTransaction{Type: model.RewardRedeem, Points: in.Points, BalanceAfter: 20}, nil
}
func (s *stubRewards) Points(_ context.Context, o model.OwnerRef) (int64, error) {
	s.owner = o
	return 140, nil
}
func (s *stubRewards) History(_ context.Context, o model.OwnerRef) ([]model.RewardTransaction, error) {
	s.owner = o
	return []model.RewardTransaction{}, nil
}
func (s *stubRewards) Offers() []model.RewardOffer { return model.Offers }

func TestRewardOwnerResolution(t *testing.T) {
	stub := &stubRewards{}
	h := NewRewardHandler(stub, time.Second, nop)

	c, rec := newCtx(http.MethodGet, "/v1/rewards/points", "")
	c.Set("user_id", uint64(7))
	require.NoError(t, h.Points(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.UserOwner(7), stub.owner)
	assert.EqualValues(t, 140, decode(t, rec)["reward_points"])

	c, _ = newCtx(http.MethodGet, "/v1/customers/4/rewards", "", "id", "4")
	c.Set("user_id", uint64(7))
	require.NoError(t, h.Points(c))
	assert.Equal(t, model.CustomerOwner(4), stub.owner)

	c, rec = newCtx(http.MethodGet, "/v1/rewards/history", "")
	require.NoError(t, h.History(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRedeemPassesOffer(t *testing.T) {
	stub := &stubRewards{}
	h := NewRewardHandler(stub, time.Second, nop)
	c, rec := newCtx(http.MethodPost, "/v1/rewards/redeem", `{"offer_id":"free-topping"}`)
	c.Set("user_id", uint64(2))

	require.NoError(t, h.Redeem(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "free-topping", stub.in.OfferID)
	assert.EqualValues(t, 20, decode(t, rec)["reward_points"])
}

// ---- reviews ----

type stubReviews struct {
	ReviewAPI
	params service.ReviewListParams
}

func (s *stubReviews) ListPublic(_ context.Context, p service.ReviewListParams) (model.Page[model.Review], error) {
	s.params = p
	return model.Page[model.Review]{Data: []model.Review{}, Page: p.Page, Limit: p.Limit}, nil
}

func TestPublicReviewParams(t *testing.T) {
	stub := &stubReviews{}
	h := NewReviewHandler(stub, time.Second, nop)

	c, rec := newCtx(http.MethodGet, "/v1/reviews?page=2&limit=5&min_rating=3.5&sort=rating:asc", "")
	require.NoError(t, h.ListPublic(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, stub.params.Page)
	assert.Equal(t, 5, stub.params.Limit)
	require.NotNil(t, stub.params.MinRating)
	assert.Equal(t, 3.5, *stub.params.MinRating)
	assert.Nil(t, stub.params.MaxRating)
	assert.Equal(t, "rating:asc", stub.params.Sort)

	c, rec = newCtx(http.MethodGet, "/v1/reviews?max_rating=lots", "")
	require.NoError(t, h.ListPublic(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid max_rating", decode(t, rec)["error"])
}

func TestCreateReviewNeedsAdmin(t *testing.T) {
	h := NewReviewHandler(&stubReviews{}, time.Second, nop)
	c, rec := newCtx(http.MethodPost, "/v1/admin/reviews", `{"customer_id":1,"rating":4}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ---- uploads ----

type stubUploads struct {
	name string
	body []byte
	by   *uint64
}

func (s *stubUploads) Upload(_ context.Context, name string, r io.Reader, by *uint64) (model.FileUpload, error) {
	b, err := io.ReadAll(r)
	s.name, s.body, s.by = name, b, by
	return model.FileUpload{ID: 1, OriginalName: name, URL: "/uploads/x.png"}, err
}
func (s *stubUploads) List(context.Context, int, int) (model.Page[model.FileUpload], error) {
	return model.Page[model.FileUpload]{}, nil
}
func (s *stubUploads) Delete(context.Context, uint64) error {
	return kind(service.ErrConflict, "image is used by 1 product(s)")
}

func TestUploadMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "latte.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(5))

	stub := &stubUploads{}
	h := NewUploadHandler(stub, time.Second, nop)
	require.NoError(t, h.Upload(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "latte.png", stub.name)
	assert.Equal(t, "png-bytes", string(stub.body))
	require.NotNil(t, stub.by)
	assert.EqualValues(t, 5, *stub.by)
}

func TestUploadMissingFile(t *testing.T) {
	h := NewUploadHandler(&stubUploads{}, time.Second, nop)
	c, rec := newCtx(http.MethodPost, "/v1/uploads", `{}`)
	require.NoError(t, h.Upload(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUploadInUse(t *testing.T) {
	h := NewUploadHandler(&stubUploads{}, time.Second, nop)
	c, rec := newCtx(http.MethodDelete, "/v1/uploads/1", "", "id", "1")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ---- health ----

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/readyz", "")
	require.NoError(t, Ready(pingFunc(func(context.Context) error { return nil }))(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newCtx(http.MethodGet, "/readyz", "")
	require.NoError(t, Ready(pingFunc(func(context.Context) error { return errors.New("down") }))(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidationMessageUsesJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&mergeReq{})
	require.Error(t, err)
	assert.Equal(t, "phone is required", validationMessage(err))

	err = v.Validate(&registerReq{Email: "nope", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, "email must be a valid email", validationMessage(err))
}

// ---- auth ----

type stubAuth struct {
	AuthAPI
	in     service.RegisterInput
	logout struct {
		uid uint64
		raw string
	}
}

func (s *stubAuth) Register(_ context.Context, in service.RegisterInput) (service.Session, error) {
	s.in = in
	if in.Email == "taken@shop.vn" {
		return service.Session{}, kind(service.ErrConflict, "email already registered")
	}
	sess := service.Session{User: model.User{ID: 11, Email: in.Email, Role: model.RoleCustomer}}
	sess.Access.Token = "access"
	sess.Refresh.Raw = "refresh"
	return sess, nil
}

func (s *stubAuth) Logout(_ context.Context, uid uint64, raw string) error {
	s.logout.uid, s.logout.raw = uid, raw
	return nil
}

func TestRegister(t *testing.T) {
	stub := &stubAuth{}
	h := NewAuthHandler(stub, time.Second, nop)

	c, rec := newCtx(http.MethodPost, "/v1/auth/register", `{"email":"lan@shop.vn","password":"secret123","phone":"0901"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0901", stub.in.Phone)
	out := decode(t, rec)
	assert.Equal(t, "access", out["access"].(map[string]any)["token"])
	assert.Equal(t, "refresh", out["refresh"].(map[string]any)["token"])
	assert.NotContains(t, out, "merge")

	c, rec = newCtx(http.MethodPost, "/v1/auth/register", `{"email":"taken@shop.vn","password":"secret123"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = newCtx(http.MethodPost, "/v1/auth/register", `{"password":"secret123"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email is required", decode(t, rec)["error"])
}

func TestLogoutUsesBearerWhenPresent(t *testing.T) {
	stub := &stubAuth{}
	h := NewAuthHandler(stub, time.Second, nop)
	c, rec := newCtx(http.MethodPost, "/v1/auth/logout", `{"refresh_token":"abc"}`)
	c.Set("user_id", uint64(4))

	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 4, stub.logout.uid)
	assert.Equal(t, "abc", stub.logout.raw)
}

// ---- contact ----

type stubContact struct {
	in     service.ContactInput
	by     *uint64
	filter model.ContactFilter
}

func (s *stubContact) Create(_ context.Context, in service.ContactInput, by *uint64) (model.ContactMessage, error) {
	s.in, s.by = in, by
	return model.ContactMessage{ID: 1, Name: in.Name, Status: model.ContactNew}, nil
}
func (s *stubContact) List(_ context.Context, f model.ContactFilter) (model.Page[model.ContactMessage], error) {
	s.filter = f
	return model.Page[model.ContactMessage]{Data: []model.ContactMessage{}}, nil
}
func (s *stubContact) SetStatus(_ context.Context, id uint64, st model.ContactStatus) (model.ContactMessage, error) {
	if id != 1 {
		return model.ContactMessage{}, kind(service.ErrNotFound, "contact message not found")
	}
	return model.ContactMessage{ID: id, Status: st}, nil
}

func TestContactCreate(t *testing.T) {
	stub := &stubContact{}
	h := NewContactHandler(stub, time.Second, nop)

	c, rec := newCtx(http.MethodPost, "/v1/contact", `{"name":"Lan","email":"lan@example.com","message":"Do you sell beans?"}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Lan", stub.in.Name)
	assert.Nil(t, stub.by)

	c, _ = newCtx(http.MethodPost, "/v1/contact", `{"name":"Lan","email":"lan@example.com","message":"Do you sell beans?"}`)
	c.Set("user_id", uint64(6))
	require.NoError(t, h.Create(c))
	require.NotNil(t, stub.by)
	assert.EqualValues(t, 6, *stub.by)
}

func TestContactCreateValidation(t *testing.T) {
	h := NewContactHandler(&stubContact{}, time.Second, nop)
	cases := map[string]string{
		`{"email":"lan@example.com","message":"hello there"}`:     "name is required",
		`{"name":"Lan","email":"nope","message":"hello there"}`:   "email must be a valid email",
		`{"name":"Lan","email":"lan@example.com","message":"hi"}`: "message must be at least 5",
	}
	for body, msg := range cases {
		c, rec := newCtx(http.MethodPost, "/v1/contact", body)
		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, msg, decode(t, rec)["error"], body)
	}
}

func TestContactListAndStatus(t *testing.T) {
	stub := &stubContact{}
	h := NewContactHandler(stub, time.Second, nop)

	c, rec := newCtx(http.MethodGet, "/v1/admin/contact-messages?status=new&search=beans&page=2", "")
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ContactStatus("new"), stub.filter.Status)
	assert.Equal(t, "beans", stub.filter.Search)
	assert.Equal(t, 2, stub.filter.Page)

	c, rec = newCtx(http.MethodPatch, "/v1/admin/contact-messages/1", `{"status":"RESOLVED"}`, "id", "1")
	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RESOLVED", decode(t, rec)["status"])

	c, rec = newCtx(http.MethodPatch, "/v1/admin/contact-messages/2", `{"status":"RESOLVED"}`, "id", "2")
	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
