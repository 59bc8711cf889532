package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

// memDB is an in-memory stand-in for the MySQL schema.  The fakes below
// share it so a test can observe every table after an operation.
type memDB struct {
	mu        sync.Mutex
	seq       uint64
	users     map[uint64]*model.User
	customers map[uint64]*model.Customer
	products  map[uint64]*model.Product
	orders    map[uint64]*model.Order
	ledger    []model.RewardTransaction
	reviews   map[uint64]*model.Review
	tokens    map[string]tokenRow
}

type tokenRow struct {
	userID uint64
	exp    time.Time
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[uint64]*model.User{},
		customers: map[uint64]*model.Customer{},
		products:  map[uint64]*model.Product{},
		orders:    map[uint64]*model.Order{},
		reviews:   map[uint64]*model.Review{},
		tokens:    map[string]tokenRow{},
	}
}

func (m *memDB) next() uint64 { m.seq++; return m.seq }

func (m *memDB) addUser(name string, phone string, points int64) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: m.next(), Email: strings.ToLower(name) + "@example.com", FullName: name, Role: model.RoleCustomer, RewardPoints: points}
	if phone != "" {
		u.Phone = &phone
	}
	m.users[u.ID] = u
	return u
}

func (m *memDB) addCustomer(name string, phone string, points int64) *model.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.Customer{ID: m.next(), Name: name, RewardPoints: points}
	if phone != "" {
		c.PhoneNumber = &phone
	}
	m.customers[c.ID] = c
	return c
}

func (m *memDB) addProduct(name, price string) *model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &model.Product{ID: m.next(), Name: name, Price: dec(price), Status: model.ProductActive, CategoryID: 1}
	m.products[p.ID] = p
	return p
}

func (m *memDB) balanceRef(o model.OwnerRef) (*int64, bool) {
	switch o.Kind {
	case model.OwnerUser:
		if u, ok := m.users[o.ID]; ok && u.DeletedAt == nil {
			return &u.RewardPoints, true
		}
	case model.OwnerCustomer:
		if c, ok := m.customers[o.ID]; ok && c.DeletedAt == nil {
			return &c.RewardPoints, true
		}
	}
	return nil, false
}

func (m *memDB) phoneHolder(phone string) model.OwnerRef {
	for _, u := range m.users {
		if u.DeletedAt == nil && u.Phone != nil && *u.Phone == phone {
			return model.UserOwner(u.ID)
		}
	}
	for _, c := range m.customers {
		if c.DeletedAt == nil && c.PhoneNumber != nil && *c.PhoneNumber == phone {
			return model.CustomerOwner(c.ID)
		}
	}
	return model.OwnerRef{}
}

// ---- orders ----

type memOrders struct{ db *memDB }

func (f memOrders) Create(_ context.Context, o *model.Order, lines []model.NewOrderLine) error {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	if !o.Owner.IsZero() {
		if _, ok := m.balanceRef(o.Owner); !ok {
			return repository.ErrNotFound
		}
	}
	cp := *o
	cp.ID = m.next()
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	cp.Details = nil
	for _, l := range lines {
		d := model.OrderDetail{ID: m.next(), OrderID: cp.ID, ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Subtotal: l.Subtotal()}
		if p, ok := m.products[l.ProductID]; ok {
			d.Product = &model.ProductSnapshot{ID: p.ID, Name: p.Name, Image: p.Image}
		}
		cp.Details = append(cp.Details, d)
	}
	m.orders[cp.ID] = &cp
	o.ID = cp.ID
	return nil
}

func (f memOrders) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	cp.Details = append([]model.OrderDetail(nil), o.Details...)
	return &cp, nil
}

func (f memOrders) List(_ context.Context, flt model.OrderFilter) ([]model.Order, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.Order{}
	for _, o := range f.db.orders {
		if flt.Status != "" && o.Status != flt.Status {
			continue
		}
		if flt.UserID != 0 && o.Owner != model.UserOwner(flt.UserID) {
			continue
		}
		if flt.CustomerName != "" && !strings.Contains(strings.ToLower(o.CustomerName), strings.ToLower(flt.CustomerName)) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f memOrders) ApplyPatch(_ context.Context, id uint64, p model.OrderPatch) (model.StatusTransition, error) {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.StatusTransition{}, repository.ErrNotFound
	}
	tr := model.StatusTransition{Previous: o.Status, Current: o.Status}
	if p.Status != nil {
		o.Status = *p.Status
		tr.Current = *p.Status
	}
	if p.PaymentMethod != nil {
		pm := *p.PaymentMethod
		o.PaymentMethod = &pm
	}
	if p.CancellationReason != nil {
		r := *p.CancellationReason
		o.CancellationReason = &r
	}
	if tr.BecamePaid() {
		for _, d := range o.Details {
			if pr, ok := m.products[d.ProductID]; ok {
				pr.SalesCount += int64(d.Quantity)
			}
		}
	}
	return tr, nil
}

func (f memOrders) Delete(_ context.Context, id uint64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.db.orders, id)
	return nil
}

func (f memOrders) SummariesByOwner(_ context.Context, owner model.OwnerRef) ([]model.OrderSummary, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.OrderSummary{}
	for _, o := range f.db.orders {
		if o.Owner == owner {
			out = append(out, model.OrderSummary{ID: o.ID, Status: o.Status, PaymentMethod: o.PaymentMethod, Total: o.Total(), PointsAwarded: o.PointsAwarded})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ---- catalog ----

type memProducts struct{ db *memDB }

func (f memProducts) MissingIDs(_ context.Context, ids []uint64) ([]uint64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var missing []uint64
	for _, id := range ids {
		if p, ok := f.db.products[id]; !ok || p.DeletedAt != nil {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ---- identities ----

type memUsers struct{ db *memDB }

func (f memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok || u.DeletedAt != nil {
		return model.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (f memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.DeletedAt == nil && u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f memUsers) GetByPhone(_ context.Context, phone string) (model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.DeletedAt == nil && u.Phone != nil && *u.Phone == phone {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f memUsers) Create(_ context.Context, u *model.User) (model.MergeResult, error) {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.DeletedAt == nil && x.Email == u.Email {
			return model.MergeResult{}, repository.ErrEmailExists
		}
	}
	var claim uint64
	if u.Phone != nil {
		h := m.phoneHolder(*u.Phone)
		switch h.Kind {
		case model.OwnerUser:
			return model.MergeResult{}, &repository.PhoneTakenError{Phone: *u.Phone, Owner: h}
		case model.OwnerCustomer:
			claim = h.ID
		}
	}
	cp := *u
	cp.ID = m.next()
	m.users[cp.ID] = &cp
	u.ID = cp.ID
	if claim != 0 {
		return m.transferLocked(claim, cp.ID), nil
	}
	return model.MergeResult{}, nil
}

func (f memUsers) Update(_ context.Context, id uint64, p model.UserPatch) error {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if p.Phone != nil && *p.Phone != "" {
		if h := m.phoneHolder(*p.Phone); !h.IsZero() && h != model.UserOwner(id) {
			return &repository.PhoneTakenError{Phone: *p.Phone, Owner: h}
		}
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Phone != nil {
		if *p.Phone == "" {
			u.Phone = nil
		} else {
			ph := *p.Phone
			u.Phone = &ph
		}
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	return nil
}

type memCustomers struct{ db *memDB }

func (f memCustomers) Create(_ context.Context, c *model.Customer) error {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.PhoneNumber != nil {
		if h := m.phoneHolder(*c.PhoneNumber); !h.IsZero() {
			return &repository.PhoneTakenError{Phone: *c.PhoneNumber, Owner: h}
		}
	}
	cp := *c
	cp.ID = m.next()
	m.customers[cp.ID] = &cp
	c.ID = cp.ID
	return nil
}

func (f memCustomers) CreateAnonymous(ctx context.Context, name string) (model.Customer, error) {
	f.db.mu.Lock()
	for _, c := range f.db.customers {
		if c.DeletedAt == nil && c.PhoneNumber == nil && strings.EqualFold(c.Name, name) {
			f.db.mu.Unlock()
			return *c, nil
		}
	}
	f.db.mu.Unlock()
	c := model.Customer{Name: name}
	err := f.Create(ctx, &c)
	return c, err
}

func (f memCustomers) GetByID(_ context.Context, id uint64) (model.Customer, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.customers[id]
	if !ok || c.DeletedAt != nil {
		return model.Customer{}, repository.ErrNotFound
	}
	return *c, nil
}

func (f memCustomers) List(_ context.Context, q model.CustomerQuery) (model.Page[model.Customer], error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := model.Page[model.Customer]{Data: []model.Customer{}, Page: 1, Limit: 20}
	for _, c := range f.db.customers {
		if c.DeletedAt == nil {
			out.Data = append(out.Data, *c)
		}
	}
	out.Total = len(out.Data)
	return out, nil
}

func (f memCustomers) Search(ctx context.Context, term string, limit int) ([]model.Customer, error) {
	p, _ := f.List(ctx, model.CustomerQuery{})
	out := []model.Customer{}
	for _, c := range p.Data {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(term)) ||
			(c.PhoneNumber != nil && strings.Contains(*c.PhoneNumber, term)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f memCustomers) Update(_ context.Context, id uint64, p model.CustomerPatch) error {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok || c.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if p.PhoneNumber != nil && *p.PhoneNumber != "" {
		if h := m.phoneHolder(*p.PhoneNumber); !h.IsZero() && h != model.CustomerOwner(id) {
			return &repository.PhoneTakenError{Phone: *p.PhoneNumber, Owner: h}
		}
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		if *p.PhoneNumber == "" {
			c.PhoneNumber = nil
		} else {
			ph := *p.PhoneNumber
			c.PhoneNumber = &ph
		}
	}
	return nil
}

func (f memCustomers) SoftDelete(_ context.Context, id uint64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.customers[id]
	if !ok || c.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	c.PhoneNumber = nil
	return nil
}

// ---- merge ----

type memMerge struct{ db *memDB }

func (f memMerge) TransferCustomerToUser(_ context.Context, customerID, userID uint64) (model.MergeResult, error) {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balanceRef(model.CustomerOwner(customerID)); !ok {
		return model.MergeResult{}, repository.ErrNotFound
	}
	if _, ok := m.balanceRef(model.UserOwner(userID)); !ok {
		return model.MergeResult{}, repository.ErrNotFound
	}
	return m.transferLocked(customerID, userID), nil
}

func (f memMerge) ClaimPhone(_ context.Context, customerID uint64, phone string) error {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok || c.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if h := m.phoneHolder(phone); !h.IsZero() && h != model.CustomerOwner(customerID) {
		return &repository.PhoneTakenError{Phone: phone, Owner: h}
	}
	c.PhoneNumber = &phone
	return nil
}

func (m *memDB) transferLocked(customerID, userID uint64) model.MergeResult {
	from, to := model.CustomerOwner(customerID), model.UserOwner(userID)
	res := model.MergeResult{Merged: true, CustomerID: customerID, UserID: &userID}
	for _, o := range m.orders {
		if o.Owner == from {
			o.Owner = to
			res.OrdersMoved++
		}
	}
	for i := range m.ledger {
		if m.ledger[i].Owner == from {
			m.ledger[i].Owner = to
			res.TransactionsMoved++
		}
	}
	for _, r := range m.reviews {
		if r.Author == from {
			r.Author = to
			res.ReviewsMoved++
		}
	}
	c := m.customers[customerID]
	res.PointsMoved = c.RewardPoints
	m.users[userID].RewardPoints += c.RewardPoints
	now := time.Now().UTC()
	c.RewardPoints = 0
	c.PhoneNumber = nil
	c.DeletedAt = &now
	return res
}

// ---- ledger ----

type memRewards struct {
	db *memDB
	// failCredit, when set, is returned by CreditOrder instead of crediting.
	failCredit error
}

func (f *memRewards) Apply(_ context.Context, e model.LedgerEntry) (model.RewardTransaction, error) {
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(e)
}

func (m *memDB) applyLocked(e model.LedgerEntry) (model.RewardTransaction, error) {
	bal, ok := m.balanceRef(e.Owner)
	if !ok {
		return model.RewardTransaction{}, repository.ErrNotFound
	}
	next := *bal
	switch e.Type {
	case model.RewardEarn:
		next += e.Points
	case model.RewardRedeem:
		if e.Points > next {
			return model.RewardTransaction{}, repository.ErrInsufficientPoints
		}
		next -= e.Points
	}
	if e.OrderID != nil {
		o, ok := m.orders[*e.OrderID]
		if !ok {
			return model.RewardTransaction{}, repository.ErrNotFound
		}
		if o.PointsSettledAt != nil {
			return model.RewardTransaction{}, repository.ErrAlreadySettled
		}
		if o.Owner != e.Owner {
			return model.RewardTransaction{}, repository.ErrOwnerMismatch
		}
		now := time.Now().UTC()
		o.PointsAwarded = e.Points
		o.PointsSettledAt = &now
	}
	*bal = next
	t := model.RewardTransaction{
		ID: m.next(), Owner: e.Owner, Type: e.Type, Points: e.Points, BalanceAfter: next,
		OrderID: e.OrderID, OfferID: e.OfferID, Description: e.Description, CreatedAt: time.Now().UTC(),
	}
	m.ledger = append(m.ledger, t)
	return t, nil
}

func (f *memRewards) CreditOrder(_ context.Context, orderID uint64, points int64, describe func(model.OwnerRef) string) (model.RewardTransaction, error) {
	if f.failCredit != nil {
		return model.RewardTransaction{}, f.failCredit
	}
	m := f.db
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return model.RewardTransaction{}, repository.ErrNotFound
	}
	if o.PointsSettledAt != nil {
		return model.RewardTransaction{}, repository.ErrAlreadySettled
	}
	if o.Owner.IsZero() {
		return model.RewardTransaction{}, repository.ErrNotFound
	}
	id := orderID
	return m.applyLocked(model.LedgerEntry{Owner: o.Owner, Type: model.RewardEarn, Points: points, OrderID: &id, Description: describe(o.Owner)})
}

func (f *memRewards) Balance(_ context.Context, owner model.OwnerRef) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	bal, ok := f.db.balanceRef(owner)
	if !ok {
		return 0, repository.ErrNotFound
	}
	return *bal, nil
}

func (f *memRewards) History(_ context.Context, owner model.OwnerRef) ([]model.RewardTransaction, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.RewardTransaction{}
	for i := len(f.db.ledger) - 1; i >= 0; i-- {
		if f.db.ledger[i].Owner == owner {
			out = append(out, f.db.ledger[i])
		}
	}
	return out, nil
}

// ledgerNet is Σ EARN − Σ REDEEM for owner.
func (m *memDB) ledgerNet(owner model.OwnerRef) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.ledger {
		if t.Owner != owner {
			continue
		}
		if t.Type == model.RewardEarn {
			n += t.Points
		} else {
			n -= t.Points
		}
	}
	return n
}

// ---- events ----

type recordedEvent struct {
	key     string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{key: key, payload: payload})
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}

var errBoom = errors.New("boom")

func nopLog() zerolog.Logger { return zerolog.Nop() }
