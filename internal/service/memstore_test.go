package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabemono-pos/api/internal/database"
)

// --- Transactional in-memory store ---
//
// memDB holds committed state. Begin takes the database lock and hands out a
// private copy; Commit publishes it and Rollback throws it away, so tests
// see exactly what a real transaction would leave behind.

type memState struct {
	stores          map[uuid.UUID]database.Store
	templates       map[uuid.UUID]database.SellableTemplate
	combos          map[uuid.UUID][]database.ListComboDishesRow
	options         map[uuid.UUID]database.GetOptionForTemplateRow
	links           map[uuid.UUID][]uuid.UUID // template -> option categories
	records         []database.StockChangeRecord
	couponTemplates map[uuid.UUID]database.CouponTemplate
	coupons         map[uuid.UUID]database.CouponInstance
	orders          map[uuid.UUID]database.Order
	items           []database.OrderItem
	instances       []database.SellableInstance
	seq             int64
}

func newMemState() *memState {
	return &memState{
		stores:          map[uuid.UUID]database.Store{},
		templates:       map[uuid.UUID]database.SellableTemplate{},
		combos:          map[uuid.UUID][]database.ListComboDishesRow{},
		options:         map[uuid.UUID]database.GetOptionForTemplateRow{},
		links:           map[uuid.UUID][]uuid.UUID{},
		couponTemplates: map[uuid.UUID]database.CouponTemplate{},
		coupons:         map[uuid.UUID]database.CouponInstance{},
		orders:          map[uuid.UUID]database.Order{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		stores:          maps.Clone(s.stores),
		templates:       maps.Clone(s.templates),
		combos:          maps.Clone(s.combos),
		options:         maps.Clone(s.options),
		links:           maps.Clone(s.links),
		records:         slices.Clone(s.records),
		couponTemplates: maps.Clone(s.couponTemplates),
		coupons:         maps.Clone(s.coupons),
		orders:          maps.Clone(s.orders),
		items:           slices.Clone(s.items),
		instances:       slices.Clone(s.instances),
		seq:             s.seq,
	}
}

type memDB struct {
	mu        sync.Mutex
	state     *memState
	beginErr  error
	commitErr error

	// failOn makes the named store method fail with the given error,
	// failCount times if set.
	failOn    map[string]error
	failCount map[string]int
	now       time.Time
}

func newMemDB() *memDB {
	return &memDB{
		state:     newMemState(),
		failOn:    map[string]error{},
		failCount: map[string]int{},
		now:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	db.mu.Lock()
	return &memTx{db: db, state: db.state.clone()}, nil
}

func (db *memDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (db *memDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (db *memDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}

// newStore binds the fake to either the committed state or a transaction.
func (db *memDB) newStore(d database.DBTX) Store {
	switch v := d.(type) {
	case *memTx:
		return &memStore{db: db, st: v.state}
	case *memDB:
		return &memStore{db: db, st: v.state}
	}
	panic("unexpected DBTX")
}

// committed returns a store over the committed state for assertions.
func (db *memDB) committed() *memStore {
	return &memStore{db: db, st: db.state}
}

type memTx struct {
	db    *memDB
	state *memState
	done  bool
}

func (tx *memTx) finish() {
	if !tx.done {
		tx.done = true
		tx.db.mu.Unlock()
	}
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	if tx.db.commitErr != nil {
		tx.finish()
		return tx.db.commitErr
	}
	tx.db.state = tx.state
	tx.finish()
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.finish()
	return nil
}

func (tx *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (tx *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (tx *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (tx *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (tx *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (tx *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (tx *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (tx *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (tx *memTx) Conn() *pgx.Conn { panic("not implemented") }

type memStore struct {
	db *memDB
	st *memState
}

var _ Store = (*memStore)(nil)

func (m *memStore) fail(name string) error {
	if n, ok := m.db.failCount[name]; ok {
		if n == 0 {
			return nil
		}
		m.db.failCount[name] = n - 1
	}
	return m.db.failOn[name]
}

// --- Seeding helpers ---

func (m *memStore) addStore(name string) database.Store {
	s := database.Store{ID: uuid.New(), Name: name, CreatedAt: m.db.now}
	m.st.stores[s.ID] = s
	return s
}

func (m *memStore) addTemplate(kind database.SellableKind, name, price string, actual, display int32) database.SellableTemplate {
	t := database.SellableTemplate{
		ID:           uuid.New(),
		Kind:         kind,
		Name:         name,
		BasePrice:    makeNumeric(price),
		IsAvailable:  true,
		ActualStock:  actual,
		DisplayStock: display,
		CreatedAt:    m.db.now,
		UpdatedAt:    m.db.now,
	}
	m.st.templates[t.ID] = t
	return t
}

func (m *memStore) addComboDish(comboID uuid.UUID, dish database.SellableTemplate) {
	rows := m.st.combos[comboID]
	rows = append(slices.Clone(rows), database.ListComboDishesRow{
		ComboID:  comboID,
		DishID:   dish.ID,
		Position: int32(len(rows)),
		DishName: dish.Name,
	})
	m.st.combos[comboID] = rows
}

// addOption creates an option in a new category linked to templateIDs.
func (m *memStore) addOption(category, name, price string, templateIDs ...uuid.UUID) uuid.UUID {
	catID := uuid.New()
	o := database.GetOptionForTemplateRow{
		ID:           uuid.New(),
		CategoryID:   catID,
		CategoryName: category,
		Name:         name,
		Price:        makeNumeric(price),
	}
	m.st.options[o.ID] = o
	for _, tid := range templateIDs {
		m.st.links[tid] = append(slices.Clone(m.st.links[tid]), catID)
	}
	return o.ID
}

func (m *memStore) addCoupon(owner uuid.UUID, typ database.CouponType, discount string, exchange uuid.UUID) database.CouponInstance {
	c := database.CouponInstance{
		ID:                 uuid.New(),
		TemplateID:         uuid.New(),
		Name:               "coupon",
		Type:               typ,
		Discount:           makeNumeric(discount),
		ExchangeTemplateID: pgUUID(exchange),
		StartAt:            m.db.now.Add(-time.Hour),
		ExpireAt:           m.db.now.Add(24 * time.Hour),
		Owner:              owner,
		AcquisitionMethod:  "activity",
	}
	m.st.coupons[c.ID] = c
	return c
}

func (m *memStore) addCouponTemplate(t database.CouponTemplate) database.CouponTemplate {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.st.couponTemplates[t.ID] = t
	return t
}

func (m *memStore) template(id uuid.UUID) database.SellableTemplate {
	return m.st.templates[id]
}

func (m *memStore) recordsFor(id uuid.UUID) []database.StockChangeRecord {
	var out []database.StockChangeRecord
	for _, r := range m.st.records {
		if r.TemplateID == id {
			out = append(out, r)
		}
	}
	return out
}

// --- LedgerStore ---

func (m *memStore) GetTemplate(ctx context.Context, id uuid.UUID) (database.SellableTemplate, error) {
	t, ok := m.st.templates[id]
	if !ok {
		return database.SellableTemplate{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) GetTemplateForUpdate(ctx context.Context, id uuid.UUID) (database.SellableTemplate, error) {
	return m.GetTemplate(ctx, id)
}

func (m *memStore) UpdateTemplateStock(ctx context.Context, arg database.UpdateTemplateStockParams) (database.SellableTemplate, error) {
	if err := m.fail("UpdateTemplateStock"); err != nil {
		return database.SellableTemplate{}, err
	}
	t, ok := m.st.templates[arg.ID]
	if !ok {
		return database.SellableTemplate{}, pgx.ErrNoRows
	}
	t.ActualStock = arg.ActualStock
	t.DisplayStock = arg.DisplayStock
	m.st.templates[t.ID] = t
	return t, nil
}

func (m *memStore) CreateStockChangeRecord(ctx context.Context, arg database.CreateStockChangeRecordParams) (database.StockChangeRecord, error) {
	if err := m.fail("CreateStockChangeRecord"); err != nil {
		return database.StockChangeRecord{}, err
	}
	m.st.seq++
	r := database.StockChangeRecord{
		ID:            uuid.New(),
		Seq:           m.st.seq,
		TemplateID:    arg.TemplateID,
		TemplateName:  arg.TemplateName,
		PreviousStock: arg.PreviousStock,
		NewStock:      arg.NewStock,
		ChangeAmount:  arg.ChangeAmount,
		ChangeType:    arg.ChangeType,
		Reason:        arg.Reason,
		AdminID:       arg.AdminID,
		OrderID:       arg.OrderID,
		CreatedAt:     m.db.now.Add(time.Duration(m.st.seq) * time.Second),
	}
	m.st.records = append(m.st.records, r)
	return r, nil
}

func (m *memStore) ListStockChangeRecordsByTemplate(ctx context.Context, templateID uuid.UUID) ([]database.StockChangeRecord, error) {
	return m.recordsFor(templateID), nil
}

func (m *memStore) ListStockChangeRecords(ctx context.Context, arg database.ListStockChangeRecordsParams) ([]database.StockChangeRecord, error) {
	var out []database.StockChangeRecord
	for i := len(m.st.records) - 1; i >= 0; i-- {
		r := m.st.records[i]
		if arg.From.Valid && r.CreatedAt.Before(arg.From.Time) {
			continue
		}
		if arg.To.Valid && !r.CreatedAt.Before(arg.To.Time) {
			continue
		}
		if arg.Name.Valid && !strings.Contains(strings.ToLower(r.TemplateName), strings.ToLower(arg.Name.String)) {
			continue
		}
		if arg.ChangeType.Valid && r.ChangeType != arg.ChangeType.StockChangeType {
			continue
		}
		out = append(out, r)
		if arg.Limit > 0 && len(out) == int(arg.Limit) {
			break
		}
	}
	return out, nil
}

// --- CouponStore ---

func (m *memStore) GetCouponTemplate(ctx context.Context, id uuid.UUID) (database.CouponTemplate, error) {
	t, ok := m.st.couponTemplates[id]
	if !ok {
		return database.CouponTemplate{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) GetCouponTemplateForUpdate(ctx context.Context, id uuid.UUID) (database.CouponTemplate, error) {
	return m.GetCouponTemplate(ctx, id)
}

func (m *memStore) ListCouponTemplates(ctx context.Context) ([]database.CouponTemplate, error) {
	return slices.Collect(maps.Values(m.st.couponTemplates)), nil
}

func (m *memStore) CreateCouponTemplate(ctx context.Context, arg database.CreateCouponTemplateParams) (database.CouponTemplate, error) {
	t := database.CouponTemplate{
		ID:                 uuid.New(),
		Name:               arg.Name,
		Type:               arg.Type,
		Discount:           arg.Discount,
		ExchangeTemplateID: arg.ExchangeTemplateID,
		Description:        arg.Description,
		Price:              arg.Price,
		Active:             arg.Active,
		StartAt:            arg.StartAt,
		EndAt:              arg.EndAt,
		Stock:              arg.Stock,
		LimitPerCustomer:   arg.LimitPerCustomer,
	}
	m.st.couponTemplates[t.ID] = t
	return t, nil
}

func (m *memStore) UpdateCouponTemplate(ctx context.Context, arg database.UpdateCouponTemplateParams) (database.CouponTemplate, error) {
	t, ok := m.st.couponTemplates[arg.ID]
	if !ok {
		return database.CouponTemplate{}, pgx.ErrNoRows
	}
	t.Name = arg.Name
	t.Description = arg.Description
	t.Price = arg.Price
	t.Active = arg.Active
	t.StartAt = arg.StartAt
	t.EndAt = arg.EndAt
	t.Stock = arg.Stock
	t.LimitPerCustomer = arg.LimitPerCustomer
	m.st.couponTemplates[t.ID] = t
	return t, nil
}

func (m *memStore) DeleteCouponTemplate(ctx context.Context, id uuid.UUID) error {
	delete(m.st.couponTemplates, id)
	return nil
}

func (m *memStore) DecrementCouponTemplateStock(ctx context.Context, id uuid.UUID) (int32, error) {
	t, ok := m.st.couponTemplates[id]
	if !ok || t.Stock <= 0 {
		return 0, pgx.ErrNoRows
	}
	t.Stock--
	m.st.couponTemplates[id] = t
	return t.Stock, nil
}

func (m *memStore) CountCouponInstancesByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error) {
	var n int64
	for _, c := range m.st.coupons {
		if c.TemplateID == templateID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountUnusedCouponsByOwner(ctx context.Context, arg database.CountUnusedCouponsByOwnerParams) (int64, error) {
	var n int64
	for _, c := range m.st.coupons {
		if c.TemplateID == arg.TemplateID && c.Owner == arg.Owner && !c.IsUsed {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateCouponInstance(ctx context.Context, arg database.CreateCouponInstanceParams) (database.CouponInstance, error) {
	c := database.CouponInstance{
		ID:                 uuid.New(),
		TemplateID:         arg.TemplateID,
		Name:               arg.Name,
		Type:               arg.Type,
		Discount:           arg.Discount,
		ExchangeTemplateID: arg.ExchangeTemplateID,
		StartAt:            arg.StartAt,
		ExpireAt:           arg.ExpireAt,
		Owner:              arg.Owner,
		AcquisitionMethod:  arg.AcquisitionMethod,
	}
	m.st.coupons[c.ID] = c
	return c, nil
}

func (m *memStore) GetCouponInstance(ctx context.Context, id uuid.UUID) (database.CouponInstance, error) {
	c, ok := m.st.coupons[id]
	if !ok {
		return database.CouponInstance{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) GetCouponInstanceForUpdate(ctx context.Context, id uuid.UUID) (database.CouponInstance, error) {
	return m.GetCouponInstance(ctx, id)
}

func (m *memStore) ListCouponInstancesByOwner(ctx context.Context, owner uuid.UUID) ([]database.CouponInstance, error) {
	var out []database.CouponInstance
	for _, c := range m.st.coupons {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListUsableCouponInstances(ctx context.Context, arg database.ListUsableCouponInstancesParams) ([]database.CouponInstance, error) {
	var out []database.CouponInstance
	for _, c := range m.st.coupons {
		if c.Owner == arg.Owner && !c.IsUsed && !arg.Now.Before(c.StartAt) && !arg.Now.After(c.ExpireAt) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) MarkCouponUsed(ctx context.Context, arg database.MarkCouponUsedParams) (database.CouponInstance, error) {
	c, ok := m.st.coupons[arg.ID]
	if !ok || c.IsUsed {
		return database.CouponInstance{}, pgx.ErrNoRows
	}
	c.IsUsed = true
	c.UsedAt = pgtype.Timestamptz{Time: arg.UsedAt, Valid: true}
	c.UsedOrder = pgUUID(arg.UsedOrder)
	m.st.coupons[c.ID] = c
	return c, nil
}

func (m *memStore) ResetCoupon(ctx context.Context, id uuid.UUID) (database.CouponInstance, error) {
	c, ok := m.st.coupons[id]
	if !ok {
		return database.CouponInstance{}, pgx.ErrNoRows
	}
	c.IsUsed = false
	c.UsedAt = pgtype.Timestamptz{}
	c.UsedOrder = pgtype.UUID{}
	m.st.coupons[c.ID] = c
	return c, nil
}

// --- OrderStore ---

func (m *memStore) GetStore(ctx context.Context, id uuid.UUID) (database.Store, error) {
	s, ok := m.st.stores[id]
	if !ok {
		return database.Store{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *memStore) GetOptionForTemplate(ctx context.Context, arg database.GetOptionForTemplateParams) (database.GetOptionForTemplateRow, error) {
	o, ok := m.st.options[arg.ID]
	if !ok {
		return database.GetOptionForTemplateRow{}, pgx.ErrNoRows
	}
	o.Linked = slices.Contains(m.st.links[arg.TemplateID], o.CategoryID)
	return o, nil
}

func (m *memStore) ListComboDishes(ctx context.Context, comboID uuid.UUID) ([]database.ListComboDishesRow, error) {
	return m.st.combos[comboID], nil
}

func (m *memStore) GetNextOrderNumber(ctx context.Context, arg database.GetNextOrderNumberParams) (int32, error) {
	if err := m.fail("GetNextOrderNumber"); err != nil {
		return 0, err
	}
	var highest int32
	for _, o := range m.st.orders {
		if o.StoreID == arg.StoreID && o.BusinessDate.Time.Equal(arg.BusinessDate.Time) && o.OrderNumber > highest {
			highest = o.OrderNumber
		}
	}
	return highest + 1, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if err := m.fail("CreateOrder"); err != nil {
		return database.Order{}, err
	}
	o := database.Order{
		ID:                  uuid.New(),
		StoreID:             arg.StoreID,
		OrderNumber:         arg.OrderNumber,
		BusinessDate:        arg.BusinessDate,
		Platform:            arg.Platform,
		PickupMethod:        arg.PickupMethod,
		PaymentMethod:       arg.PaymentMethod,
		OnlinePaymentCode:   arg.OnlinePaymentCode,
		OrderAmount:         makeNumeric("0"),
		ManualDiscount:      arg.ManualDiscount,
		Discounts:           makeNumeric("0"),
		PointsDiscount:      arg.PointsDiscount,
		DeliveryFee:         arg.DeliveryFee,
		TotalMoney:          makeNumeric("0"),
		Status:              database.OrderStatusUnpaid,
		TableNumber:         arg.TableNumber,
		Remarks:             arg.Remarks,
		DeliveryAddress:     arg.DeliveryAddress,
		ScheduledPickupTime: arg.ScheduledPickupTime,
		CustomerID:          arg.CustomerID,
		AppliedCoupons:      []uuid.UUID{},
		Weekday:             arg.Weekday,
		CreatedBy:           arg.CreatedBy,
		CreatedAt:           arg.CreatedAt,
		UpdatedAt:           arg.CreatedAt,
	}
	m.st.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.st.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	var out []database.Order
	for _, o := range m.st.orders {
		if o.StoreID == arg.StoreID && !o.CreatedAt.Before(arg.From) && o.CreatedAt.Before(arg.To) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b database.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	o, ok := m.st.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.OrderAmount = arg.OrderAmount
	o.Discounts = arg.Discounts
	o.TotalMoney = arg.TotalMoney
	o.AppliedCoupons = slices.Clone(arg.AppliedCoupons)
	m.st.orders[o.ID] = o
	return o, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	o, ok := m.st.orders[arg.ID]
	if !ok || o.Status != arg.Status_2 {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	m.st.orders[o.ID] = o
	return o, nil
}

func (m *memStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	delete(m.st.orders, id)
	return nil
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if err := m.fail("CreateOrderItem"); err != nil {
		return database.OrderItem{}, err
	}
	it := database.OrderItem{
		ID:         uuid.New(),
		OrderID:    arg.OrderID,
		InstanceID: arg.InstanceID,
		Quantity:   arg.Quantity,
		LineTotal:  arg.LineTotal,
	}
	m.st.items = append(m.st.items, it)
	return it, nil
}

func (m *memStore) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	var out []database.OrderItem
	for _, it := range m.st.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	m.st.items = slices.DeleteFunc(m.st.items, func(it database.OrderItem) bool { return it.OrderID == orderID })
	return nil
}

func (m *memStore) DeleteOrderItemByInstance(ctx context.Context, arg database.DeleteOrderItemByInstanceParams) (int64, error) {
	before := len(m.st.items)
	m.st.items = slices.DeleteFunc(m.st.items, func(it database.OrderItem) bool {
		return it.OrderID == arg.OrderID && it.InstanceID == arg.InstanceID
	})
	return int64(before - len(m.st.items)), nil
}

func (m *memStore) CreateInstance(ctx context.Context, arg database.CreateInstanceParams) (database.SellableInstance, error) {
	inst := database.SellableInstance{
		ID:                  uuid.New(),
		Kind:                arg.Kind,
		TemplateID:          arg.TemplateID,
		OrderID:             arg.OrderID,
		ParentID:            arg.ParentID,
		Name:                arg.Name,
		BasePrice:           arg.BasePrice,
		Options:             arg.Options,
		Items:               arg.Items,
		SpecialInstructions: arg.SpecialInstructions,
		FinalPrice:          arg.FinalPrice,
		DisplayTaken:        arg.DisplayTaken,
		CreatedAt:           m.db.now,
	}
	m.st.instances = append(m.st.instances, inst)
	return inst, nil
}

func (m *memStore) GetInstance(ctx context.Context, id uuid.UUID) (database.SellableInstance, error) {
	for _, inst := range m.st.instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return database.SellableInstance{}, pgx.ErrNoRows
}

func (m *memStore) ListInstancesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.SellableInstance, error) {
	var out []database.SellableInstance
	for _, inst := range m.st.instances {
		if inst.OrderID.Valid && uuid.UUID(inst.OrderID.Bytes) == orderID && !inst.ParentID.Valid {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memStore) ListChildInstances(ctx context.Context, parentID uuid.UUID) ([]database.SellableInstance, error) {
	var out []database.SellableInstance
	for _, inst := range m.st.instances {
		if inst.ParentID.Valid && uuid.UUID(inst.ParentID.Bytes) == parentID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memStore) DeleteChildInstances(ctx context.Context, parentID uuid.UUID) error {
	m.st.instances = slices.DeleteFunc(m.st.instances, func(inst database.SellableInstance) bool {
		return inst.ParentID.Valid && uuid.UUID(inst.ParentID.Bytes) == parentID
	})
	return nil
}

func (m *memStore) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	m.st.instances = slices.DeleteFunc(m.st.instances, func(inst database.SellableInstance) bool { return inst.ID == id })
	return nil
}

// --- Helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(val); err != nil {
		panic(err)
	}
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return numericToDecimal(n).Equal(numericToDecimal(makeNumeric(expected)))
}

var errBoom = errors.New("boom")
