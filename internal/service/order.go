package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/events"
)

const maxOrderNumberRetries = 3

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	StoreID             uuid.UUID
	CreatedBy           uuid.UUID // staff member, uuid.Nil for online orders
	CustomerID          uuid.UUID // uuid.Nil for walk-in orders
	Platform            string
	PickupMethod        string
	PaymentMethod       string
	OnlinePaymentCode   string
	TableNumber         string
	Remarks             string
	DeliveryAddress     string
	ScheduledPickupTime *time.Time
	ManualDiscount      decimal.Decimal
	PointsDiscount      decimal.Decimal
	DeliveryFee         decimal.Decimal
	Lines               []LineRequest
	Coupons             []uuid.UUID
}

// LineRequest is a single sold dish or combo.
type LineRequest struct {
	TemplateID          uuid.UUID
	Quantity            int32
	OptionIDs           []uuid.UUID
	SpecialInstructions string
	// Items lists the dishes of a combo in combo order. Empty means the
	// combo's default dishes without options.
	Items []ComboItemRequest
}

// ComboItemRequest is one dish slot of a combo line.
type ComboItemRequest struct {
	DishTemplateID uuid.UUID
	OptionIDs      []uuid.UUID
	// CreateInstance also sells the dish on its own account: a nested dish
	// instance is created and the dish's stock is reserved.
	CreateInstance bool
}

// OptionSnapshot freezes the selected options of one category.
type OptionSnapshot struct {
	Category   NamedRef            `json:"category"`
	Selections []SelectionSnapshot `json:"selections"`
}

// NamedRef is an ID with the name it had when the order was taken.
type NamedRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// SelectionSnapshot freezes one selected option and its price.
type SelectionSnapshot struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ComboItemSnapshot freezes one dish slot of a sold combo.
type ComboItemSnapshot struct {
	DishTemplate   NamedRef         `json:"dish_template"`
	Options        []OptionSnapshot `json:"options"`
	CreateInstance bool             `json:"create_instance"`
}

// OrderLine is a top-level instance with its order item and nested dishes.
type OrderLine struct {
	Item     database.OrderItem
	Instance database.SellableInstance
	Children []database.SellableInstance
}

// OrderDetail is an order with its lines.
type OrderDetail struct {
	Order database.Order
	Lines []OrderLine
}

// OrderService runs the order workflow. Every mutating method is one
// transaction covering stock, coupons, instances and the order row.
type OrderService struct {
	run         runner
	notify      events.Notifier
	offsetHours int
	now         func() time.Time
}

// NewOrderService creates a new OrderService. offsetHours positions the
// business day used for daily order numbers.
func NewOrderService(db DB, newStore NewStore, notify events.Notifier, offsetHours int) *OrderService {
	if notify == nil {
		notify = events.Discard
	}
	return &OrderService{
		run:         runner{db: db, newStore: newStore},
		notify:      notify,
		offsetHours: offsetHours,
		now:         time.Now,
	}
}

// CreateOrder validates, prices, reserves stock, redeems coupons and creates
// an order atomically. Retries up to maxOrderNumberRetries times on
// order_number unique constraint violations (two transactions computing the
// same MAX for the day).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	if err := validateCreateOrder(&req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		detail, touched, err := s.createOrderTx(ctx, req)
		if err == nil {
			s.notify.Notify(ctx, events.New(events.OrderCreated, detail.Order.StoreID, detail.Order))
			s.notifyStock(ctx, detail.Order.StoreID, touched)
			return detail, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrTransactionAborted, lastErr)
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if len(req.Lines) == 0 {
		return ErrEmptyItems
	}
	for i, l := range req.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("lines[%d]: %w", i, ErrInvalidQuantity)
		}
	}
	if req.Platform == "" {
		req.Platform = enum.PlatformPOS
	}
	if !isValidPlatform(req.Platform) {
		return ErrInvalidPlatform
	}
	if !isValidPickupMethod(req.PickupMethod) {
		return ErrInvalidPickupMethod
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return ErrInvalidPaymentMethod
	}
	if req.ManualDiscount.IsNegative() || req.PointsDiscount.IsNegative() || req.DeliveryFee.IsNegative() {
		return ErrInvalidAmount
	}
	if err := checkCouponList(req.Coupons); err != nil {
		return err
	}
	if len(req.Coupons) > 0 && req.CustomerID == uuid.Nil {
		return ErrMissingCustomer
	}
	return nil
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the daily order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_store_day_number_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderDetail, []database.SellableTemplate, error) {
	now := s.now()
	day := BusinessDayAt(now, s.offsetHours)
	var detail *OrderDetail
	var touched []database.SellableTemplate

	err := s.run.inTx(ctx, func(store Store) error {
		if _, err := store.GetStore(ctx, req.StoreID); err != nil {
			if isNoRows(err) {
				return ErrStoreNotFound
			}
			return fmt.Errorf("get store: %w", err)
		}

		// --- Resolve templates and options, price every line ---
		plans := make([]*linePlan, 0, len(req.Lines))
		for i, l := range req.Lines {
			p, err := planLine(ctx, store, l)
			if err != nil {
				return fmt.Errorf("lines[%d]: %w", i, err)
			}
			plans = append(plans, p)
		}

		// --- Generate order number ---
		nextNum, err := store.GetNextOrderNumber(ctx, database.GetNextOrderNumberParams{
			StoreID:      req.StoreID,
			BusinessDate: day.pgDate(),
		})
		if err != nil {
			return fmt.Errorf("get next order number: %w", err)
		}

		order, err := store.CreateOrder(ctx, database.CreateOrderParams{
			StoreID:             req.StoreID,
			OrderNumber:         nextNum,
			BusinessDate:        day.pgDate(),
			Platform:            req.Platform,
			PickupMethod:        req.PickupMethod,
			PaymentMethod:       req.PaymentMethod,
			OnlinePaymentCode:   pgText(req.OnlinePaymentCode),
			ManualDiscount:      decimalToNumeric(req.ManualDiscount),
			PointsDiscount:      decimalToNumeric(req.PointsDiscount),
			DeliveryFee:         decimalToNumeric(req.DeliveryFee),
			TableNumber:         pgText(req.TableNumber),
			Remarks:             pgText(req.Remarks),
			DeliveryAddress:     pgText(req.DeliveryAddress),
			ScheduledPickupTime: pgTime(req.ScheduledPickupTime),
			CustomerID:          pgUUID(req.CustomerID),
			Weekday:             day.Weekday(),
			CreatedBy:           pgUUID(req.CreatedBy),
			CreatedAt:           now,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		// --- Reserve stock for every line before anything references it ---
		ledger := NewLedger(store)
		if err := reserveAll(ctx, ledger, plans, order.ID); err != nil {
			return err
		}
		touched = ledger.Touched()

		for _, p := range plans {
			if _, err := persistLine(ctx, store, p, order.ID); err != nil {
				return err
			}
		}

		// --- Redeem coupons ---
		redeemer := NewRedeemer(store)
		for _, cid := range req.Coupons {
			if _, err := redeemer.Apply(ctx, cid, order.ID, req.CustomerID, now); err != nil {
				return fmt.Errorf("coupon %s: %w", cid, err)
			}
		}

		order, err = refreshTotals(ctx, store, order, req.Coupons)
		if err != nil {
			return err
		}

		detail, err = loadDetail(ctx, store, order)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return detail, touched, nil
}

// UpdateCouponsRequest replaces the coupons applied to an unpaid order.
type UpdateCouponsRequest struct {
	OrderID uuid.UUID
	Coupons []uuid.UUID
	// Actor is the customer making the change, uuid.Nil for staff.
	Actor uuid.UUID
}

// UpdateOrderCoupons diffs the applied coupons, reverses the removed ones,
// redeems the added ones and recomputes the totals atomically.
func (s *OrderService) UpdateOrderCoupons(ctx context.Context, req UpdateCouponsRequest) (*OrderDetail, error) {
	if err := checkCouponList(req.Coupons); err != nil {
		return nil, err
	}

	now := s.now()
	var detail *OrderDetail
	err := s.run.inTx(ctx, func(store Store) error {
		order, err := lockUnpaidOrder(ctx, store, req.OrderID)
		if err != nil {
			return err
		}

		customer := uuid.Nil
		if order.CustomerID.Valid {
			customer = uuid.UUID(order.CustomerID.Bytes)
		}
		if req.Actor != uuid.Nil && req.Actor != customer {
			return ErrOrderNotOwned
		}
		if len(req.Coupons) > 0 && customer == uuid.Nil {
			return ErrMissingCustomer
		}

		redeemer := NewRedeemer(store)
		for _, cid := range order.AppliedCoupons {
			if !slices.Contains(req.Coupons, cid) {
				if _, err := redeemer.Reverse(ctx, cid); err != nil {
					return fmt.Errorf("coupon %s: %w", cid, err)
				}
			}
		}
		for _, cid := range req.Coupons {
			if !slices.Contains(order.AppliedCoupons, cid) {
				if _, err := redeemer.Apply(ctx, cid, order.ID, customer, now); err != nil {
					return fmt.Errorf("coupon %s: %w", cid, err)
				}
			}
		}

		order, err = refreshTotals(ctx, store, order, req.Coupons)
		if err != nil {
			return err
		}
		detail, err = loadDetail(ctx, store, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.Notify(ctx, events.New(events.OrderUpdated, detail.Order.StoreID, detail.Order))
	return detail, nil
}

// UpdateOrderStatus moves an order out of Unpaid. Completed and Canceled are
// terminal.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
	switch database.OrderStatus(status) {
	case database.OrderStatusCanceled:
		return s.CancelOrder(ctx, id)
	case database.OrderStatusCompleted:
	case database.OrderStatusUnpaid:
		return database.Order{}, ErrOrderStatusTransition
	default:
		return database.Order{}, ErrInvalidStatus
	}

	var order database.Order
	err := s.run.inTx(ctx, func(store Store) error {
		if _, err := lockUnpaidOrder(ctx, store, id); err != nil {
			if errors.Is(err, ErrOrderNotUnpaid) {
				return ErrOrderStatusTransition
			}
			return err
		}
		updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:       id,
			Status:   database.OrderStatusCompleted,
			Status_2: database.OrderStatusUnpaid,
		})
		if err != nil {
			if isNoRows(err) {
				return ErrOrderStatusTransition
			}
			return fmt.Errorf("update order status: %w", err)
		}
		order = updated
		return nil
	})
	if err != nil {
		return database.Order{}, err
	}

	s.notify.Notify(ctx, events.New(events.OrderCompleted, order.StoreID, order))
	return order, nil
}

// CancelOrder releases the order's stock, reverses its coupons and marks it
// Canceled. Instances stay as the historical record.
func (s *OrderService) CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	var order database.Order
	var touched []database.SellableTemplate
	err := s.run.inTx(ctx, func(store Store) error {
		locked, err := lockUnpaidOrder(ctx, store, id)
		if err != nil {
			return err
		}
		ledger := NewLedger(store)
		if err := reverseOrder(ctx, store, ledger, locked, enum.ReasonOrderCanceled); err != nil {
			return err
		}
		touched = ledger.Touched()
		updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:       id,
			Status:   database.OrderStatusCanceled,
			Status_2: database.OrderStatusUnpaid,
		})
		if err != nil {
			if isNoRows(err) {
				return ErrOrderNotUnpaid
			}
			return fmt.Errorf("update order status: %w", err)
		}
		order = updated
		return nil
	})
	if err != nil {
		return database.Order{}, err
	}

	s.notify.Notify(ctx, events.New(events.OrderCanceled, order.StoreID, order))
	s.notifyStock(ctx, order.StoreID, touched)
	return order, nil
}

// DeleteOrder removes an order in any state. Unless it was already canceled,
// its stock and coupons are reversed first.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	var storeID uuid.UUID
	var touched []database.SellableTemplate
	err := s.run.inTx(ctx, func(store Store) error {
		order, err := store.GetOrderForUpdate(ctx, id)
		if err != nil {
			if isNoRows(err) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		storeID = order.StoreID

		if order.Status != database.OrderStatusCanceled {
			ledger := NewLedger(store)
			if err := reverseOrder(ctx, store, ledger, order, enum.ReasonOrderDeleted); err != nil {
				return err
			}
			touched = ledger.Touched()
		}

		instances, err := store.ListInstancesByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}
		if err := store.DeleteOrderItems(ctx, order.ID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		for _, inst := range instances {
			if err := store.DeleteChildInstances(ctx, inst.ID); err != nil {
				return fmt.Errorf("delete nested instances: %w", err)
			}
			if err := store.DeleteInstance(ctx, inst.ID); err != nil {
				return fmt.Errorf("delete instance: %w", err)
			}
		}
		if err := store.DeleteOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify.Notify(ctx, events.New(events.OrderDeleted, storeID, map[string]uuid.UUID{"id": id}))
	s.notifyStock(ctx, storeID, touched)
	return nil
}

// AddOrderLine sells one more dish or combo on an unpaid order.
func (s *OrderService) AddOrderLine(ctx context.Context, orderID uuid.UUID, line LineRequest) (*OrderDetail, error) {
	if line.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var detail *OrderDetail
	var touched []database.SellableTemplate
	err := s.run.inTx(ctx, func(store Store) error {
		order, err := lockUnpaidOrder(ctx, store, orderID)
		if err != nil {
			return err
		}
		p, err := planLine(ctx, store, line)
		if err != nil {
			return err
		}
		ledger := NewLedger(store)
		if err := reserveAll(ctx, ledger, []*linePlan{p}, order.ID); err != nil {
			return err
		}
		touched = ledger.Touched()
		if _, err := persistLine(ctx, store, p, order.ID); err != nil {
			return err
		}
		order, err = refreshTotals(ctx, store, order, order.AppliedCoupons)
		if err != nil {
			return err
		}
		detail, err = loadDetail(ctx, store, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.Notify(ctx, events.New(events.OrderUpdated, detail.Order.StoreID, detail.Order))
	s.notifyStock(ctx, detail.Order.StoreID, touched)
	return detail, nil
}

// RemoveOrderLine deletes one top-level line of an unpaid order and releases
// its stock, nested dishes included.
func (s *OrderService) RemoveOrderLine(ctx context.Context, orderID, instanceID uuid.UUID) (*OrderDetail, error) {
	var detail *OrderDetail
	var touched []database.SellableTemplate
	err := s.run.inTx(ctx, func(store Store) error {
		order, err := lockUnpaidOrder(ctx, store, orderID)
		if err != nil {
			return err
		}

		inst, err := store.GetInstance(ctx, instanceID)
		if err != nil {
			if isNoRows(err) {
				return ErrInstanceNotFound
			}
			return fmt.Errorf("get instance: %w", err)
		}
		if !inst.OrderID.Valid || uuid.UUID(inst.OrderID.Bytes) != order.ID || inst.ParentID.Valid {
			return ErrInstanceNotFound
		}

		items, err := store.ListOrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		qty := quantities(items)[inst.ID]
		children, err := store.ListChildInstances(ctx, inst.ID)
		if err != nil {
			return fmt.Errorf("list nested instances: %w", err)
		}

		releases := releasesFor(inst, children, qty)
		ledger := NewLedger(store)
		if err := releaseAll(ctx, ledger, releases, enum.ReasonLineRemoved, order.ID); err != nil {
			return err
		}
		touched = ledger.Touched()

		if _, err := store.DeleteOrderItemByInstance(ctx, database.DeleteOrderItemByInstanceParams{
			OrderID:    order.ID,
			InstanceID: inst.ID,
		}); err != nil {
			return fmt.Errorf("delete order item: %w", err)
		}
		if err := store.DeleteChildInstances(ctx, inst.ID); err != nil {
			return fmt.Errorf("delete nested instances: %w", err)
		}
		if err := store.DeleteInstance(ctx, inst.ID); err != nil {
			return fmt.Errorf("delete instance: %w", err)
		}

		order, err = refreshTotals(ctx, store, order, order.AppliedCoupons)
		if err != nil {
			return err
		}
		detail, err = loadDetail(ctx, store, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.Notify(ctx, events.New(events.OrderUpdated, detail.Order.StoreID, detail.Order))
	s.notifyStock(ctx, detail.Order.StoreID, touched)
	return detail, nil
}

// notifyStock emits one stock.changed per template whose counters the
// committed transaction moved.
func (s *OrderService) notifyStock(ctx context.Context, storeID uuid.UUID, touched []database.SellableTemplate) {
	for _, t := range touched {
		s.notify.Notify(ctx, events.New(events.StockChanged, storeID, stockPayload(t)))
	}
}

// GetOrder returns an order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	store := s.run.reader()
	order, err := store.GetOrder(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return loadDetail(ctx, store, order)
}

// ListOrders returns a store's orders created in [from, to), newest first.
func (s *OrderService) ListOrders(ctx context.Context, storeID uuid.UUID, from, to time.Time) ([]database.Order, error) {
	if !to.After(from) {
		return nil, newError(ErrValidation, "to must be after from")
	}
	orders, err := s.run.reader().ListOrders(ctx, database.ListOrdersParams{
		StoreID: storeID,
		From:    from,
		To:      to,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListTodayOrders returns the orders of the current business day.
func (s *OrderService) ListTodayOrders(ctx context.Context, storeID uuid.UUID) ([]database.Order, error) {
	day := BusinessDayAt(s.now(), s.offsetHours)
	return s.ListOrders(ctx, storeID, day.Start, day.End)
}

// --- Workflow steps ---

type linePlan struct {
	template     database.SellableTemplate
	quantity     int32
	options      []OptionSnapshot
	finalPrice   decimal.Decimal
	instructions string
	items        []*comboItemPlan
	reservation  Reservation
}

type comboItemPlan struct {
	dish           database.SellableTemplate
	options        []OptionSnapshot
	finalPrice     decimal.Decimal
	createInstance bool
	reservation    Reservation
}

// planLine resolves a line against the catalog and prices it:
// finalPrice = basePrice + selected option prices (+ combo dish options).
func planLine(ctx context.Context, store Store, l LineRequest) (*linePlan, error) {
	if l.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	t, err := getTemplate(ctx, store, l.TemplateID)
	if err != nil {
		return nil, err
	}
	if !t.IsAvailable {
		return nil, fmt.Errorf("%s: %w", t.Name, ErrTemplateUnavailable)
	}

	opts, optTotal, err := resolveOptions(ctx, store, t.ID, l.OptionIDs)
	if err != nil {
		return nil, err
	}
	p := &linePlan{
		template:     t,
		quantity:     l.Quantity,
		options:      opts,
		finalPrice:   numericToDecimal(t.BasePrice).Add(optTotal),
		instructions: l.SpecialInstructions,
	}

	if t.Kind != database.SellableKindCombo {
		if len(l.Items) > 0 {
			return nil, ErrComboItemMismatch
		}
		return p, nil
	}

	slots, err := store.ListComboDishes(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list combo dishes: %w", err)
	}
	items := l.Items
	if len(items) == 0 {
		items = make([]ComboItemRequest, len(slots))
		for i, slot := range slots {
			items[i] = ComboItemRequest{DishTemplateID: slot.DishID}
		}
	}
	if len(items) != len(slots) {
		return nil, ErrComboItemMismatch
	}

	for i, item := range items {
		if item.DishTemplateID != slots[i].DishID {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrComboItemMismatch)
		}
		dish, err := getTemplate(ctx, store, item.DishTemplateID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		dishOpts, dishOptTotal, err := resolveOptions(ctx, store, dish.ID, item.OptionIDs)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		p.finalPrice = p.finalPrice.Add(dishOptTotal)
		p.items = append(p.items, &comboItemPlan{
			dish:           dish,
			options:        dishOpts,
			finalPrice:     numericToDecimal(dish.BasePrice).Add(dishOptTotal),
			createInstance: item.CreateInstance,
		})
	}
	return p, nil
}

func getTemplate(ctx context.Context, store Store, id uuid.UUID) (database.SellableTemplate, error) {
	t, err := store.GetTemplate(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return database.SellableTemplate{}, ErrTemplateNotFound
		}
		return database.SellableTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// resolveOptions snapshots the selected options grouped by category, in the
// order the categories were first selected.
func resolveOptions(ctx context.Context, store Store, templateID uuid.UUID, ids []uuid.UUID) ([]OptionSnapshot, decimal.Decimal, error) {
	snaps := []OptionSnapshot{}
	total := decimal.Zero
	for j, id := range ids {
		opt, err := store.GetOptionForTemplate(ctx, database.GetOptionForTemplateParams{
			ID:         id,
			TemplateID: templateID,
		})
		if err != nil {
			if isNoRows(err) {
				return nil, decimal.Zero, fmt.Errorf("options[%d]: %w", j, ErrOptionNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("options[%d]: get option: %w", j, err)
		}
		if !opt.Linked {
			return nil, decimal.Zero, fmt.Errorf("options[%d]: %w", j, ErrOptionMismatch)
		}

		price := numericToDecimal(opt.Price)
		total = total.Add(price)
		sel := SelectionSnapshot{ID: opt.ID, Name: opt.Name, Price: price}

		idx := slices.IndexFunc(snaps, func(s OptionSnapshot) bool { return s.Category.ID == opt.CategoryID })
		if idx < 0 {
			snaps = append(snaps, OptionSnapshot{Category: NamedRef{ID: opt.CategoryID, Name: opt.CategoryName}})
			idx = len(snaps) - 1
		}
		snaps[idx].Selections = append(snaps[idx].Selections, sel)
	}
	return snaps, total, nil
}

// reserveAll reserves every line (and every nested dish sold on its own
// account) in template ID order so concurrent orders lock rows in the same
// order.
func reserveAll(ctx context.Context, ledger *Ledger, plans []*linePlan, orderID uuid.UUID) error {
	type pending struct {
		templateID uuid.UUID
		qty        int32
		out        *Reservation
	}
	var todo []pending
	for _, p := range plans {
		todo = append(todo, pending{templateID: p.template.ID, qty: p.quantity, out: &p.reservation})
		for _, it := range p.items {
			if it.createInstance {
				todo = append(todo, pending{templateID: it.dish.ID, qty: p.quantity, out: &it.reservation})
			}
		}
	}
	slices.SortStableFunc(todo, func(a, b pending) int {
		return bytes.Compare(a.templateID[:], b.templateID[:])
	})

	for _, r := range todo {
		res, err := ledger.Reserve(ctx, r.templateID, r.qty, orderID)
		if err != nil {
			return err
		}
		*r.out = res
	}
	return nil
}

// persistLine writes the instance (and nested dish instances) and the order
// item of a reserved line.
func persistLine(ctx context.Context, store Store, p *linePlan, orderID uuid.UUID) (OrderLine, error) {
	optionsJSON, err := json.Marshal(p.options)
	if err != nil {
		return OrderLine{}, fmt.Errorf("encode options: %w", err)
	}
	snaps := make([]ComboItemSnapshot, 0, len(p.items))
	for _, it := range p.items {
		snaps = append(snaps, ComboItemSnapshot{
			DishTemplate:   NamedRef{ID: it.dish.ID, Name: it.dish.Name},
			Options:        it.options,
			CreateInstance: it.createInstance,
		})
	}
	itemsJSON, err := json.Marshal(snaps)
	if err != nil {
		return OrderLine{}, fmt.Errorf("encode combo items: %w", err)
	}

	inst, err := store.CreateInstance(ctx, database.CreateInstanceParams{
		Kind:                p.template.Kind,
		TemplateID:          p.template.ID,
		OrderID:             pgUUID(orderID),
		Name:                p.template.Name,
		BasePrice:           p.template.BasePrice,
		Options:             optionsJSON,
		Items:               itemsJSON,
		SpecialInstructions: pgText(p.instructions),
		FinalPrice:          decimalToNumeric(p.finalPrice),
		DisplayTaken:        p.reservation.DisplayTaken,
	})
	if err != nil {
		return OrderLine{}, fmt.Errorf("create instance: %w", err)
	}

	line := OrderLine{Instance: inst}
	for _, it := range p.items {
		if !it.createInstance {
			continue
		}
		dishOpts, err := json.Marshal(it.options)
		if err != nil {
			return OrderLine{}, fmt.Errorf("encode options: %w", err)
		}
		child, err := store.CreateInstance(ctx, database.CreateInstanceParams{
			Kind:         database.SellableKindDish,
			TemplateID:   it.dish.ID,
			OrderID:      pgUUID(orderID),
			ParentID:     pgUUID(inst.ID),
			Name:         it.dish.Name,
			BasePrice:    it.dish.BasePrice,
			Options:      dishOpts,
			Items:        []byte("[]"),
			FinalPrice:   decimalToNumeric(it.finalPrice),
			DisplayTaken: it.reservation.DisplayTaken,
		})
		if err != nil {
			return OrderLine{}, fmt.Errorf("create nested instance: %w", err)
		}
		line.Children = append(line.Children, child)
	}

	item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:    orderID,
		InstanceID: inst.ID,
		Quantity:   p.quantity,
		LineTotal:  decimalToNumeric(p.finalPrice.Mul(decimal.NewFromInt32(p.quantity))),
	})
	if err != nil {
		return OrderLine{}, fmt.Errorf("create order item: %w", err)
	}
	line.Item = item
	return line, nil
}

// refreshTotals recomputes every derived money field from the persisted lines
// and the given coupons, then stores them with the coupon list.
func refreshTotals(ctx context.Context, store Store, order database.Order, couponIDs []uuid.UUID) (database.Order, error) {
	instances, err := store.ListInstancesByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list instances: %w", err)
	}
	items, err := store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}
	qty := quantities(items)

	var lines []LineAmount
	var units []CouponLine
	for _, inst := range instances {
		q := qty[inst.ID]
		lines = append(lines, LineAmount{UnitPrice: numericToDecimal(inst.FinalPrice), Quantity: q})
		for range q {
			units = append(units, CouponLine{TemplateID: inst.TemplateID, BasePrice: numericToDecimal(inst.BasePrice)})
		}
	}

	coupons := make([]database.CouponInstance, 0, len(couponIDs))
	for _, cid := range couponIDs {
		c, err := store.GetCouponInstance(ctx, cid)
		if err != nil {
			if isNoRows(err) {
				return database.Order{}, ErrCouponNotFound
			}
			return database.Order{}, fmt.Errorf("get coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	couponDiscount, err := CouponsDiscount(coupons, units)
	if err != nil {
		return database.Order{}, err
	}

	totals, err := CalculateTotals(TotalsInput{
		Lines:          lines,
		ManualDiscount: numericToDecimal(order.ManualDiscount),
		CouponDiscount: couponDiscount,
		PointsDiscount: numericToDecimal(order.PointsDiscount),
		DeliveryFee:    numericToDecimal(order.DeliveryFee),
	})
	if err != nil {
		return database.Order{}, err
	}

	applied := couponIDs
	if applied == nil {
		applied = []uuid.UUID{}
	}
	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:             order.ID,
		OrderAmount:    decimalToNumeric(totals.OrderAmount),
		Discounts:      decimalToNumeric(totals.Discounts),
		TotalMoney:     decimalToNumeric(totals.TotalMoney),
		AppliedCoupons: applied,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order totals: %w", err)
	}
	return updated, nil
}

type release struct {
	templateID   uuid.UUID
	qty          int32
	displayTaken int32
}

func releasesFor(inst database.SellableInstance, children []database.SellableInstance, qty int32) []release {
	out := []release{{templateID: inst.TemplateID, qty: qty, displayTaken: inst.DisplayTaken}}
	for _, c := range children {
		out = append(out, release{templateID: c.TemplateID, qty: qty, displayTaken: c.DisplayTaken})
	}
	return out
}

func releaseAll(ctx context.Context, ledger *Ledger, releases []release, reason string, orderID uuid.UUID) error {
	slices.SortStableFunc(releases, func(a, b release) int {
		return bytes.Compare(a.templateID[:], b.templateID[:])
	})
	for _, r := range releases {
		if r.qty <= 0 {
			continue
		}
		if _, err := ledger.Release(ctx, ReleaseParams{
			TemplateID:   r.templateID,
			Quantity:     r.qty,
			DisplayTaken: r.displayTaken,
			Reason:       reason,
			OrderID:      orderID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// reverseOrder undoes every side effect of an order: stock of each instance,
// nested ones included, goes back and every applied coupon is reset.
func reverseOrder(ctx context.Context, store Store, ledger *Ledger, order database.Order, reason string) error {
	instances, err := store.ListInstancesByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}
	items, err := store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	qty := quantities(items)

	var releases []release
	for _, inst := range instances {
		children, err := store.ListChildInstances(ctx, inst.ID)
		if err != nil {
			return fmt.Errorf("list nested instances: %w", err)
		}
		releases = append(releases, releasesFor(inst, children, qty[inst.ID])...)
	}
	if err := releaseAll(ctx, ledger, releases, reason, order.ID); err != nil {
		return err
	}

	redeemer := NewRedeemer(store)
	for _, cid := range order.AppliedCoupons {
		if _, err := redeemer.Reverse(ctx, cid); err != nil {
			return fmt.Errorf("coupon %s: %w", cid, err)
		}
	}
	return nil
}

func lockUnpaidOrder(ctx context.Context, store Store, id uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("lock order: %w", err)
	}
	if order.Status != database.OrderStatusUnpaid {
		return database.Order{}, ErrOrderNotUnpaid
	}
	return order, nil
}

func loadDetail(ctx context.Context, store Store, order database.Order) (*OrderDetail, error) {
	instances, err := store.ListInstancesByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	items, err := store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	byInstance := make(map[uuid.UUID]database.OrderItem, len(items))
	for _, it := range items {
		byInstance[it.InstanceID] = it
	}

	detail := &OrderDetail{Order: order, Lines: make([]OrderLine, 0, len(instances))}
	for _, inst := range instances {
		children, err := store.ListChildInstances(ctx, inst.ID)
		if err != nil {
			return nil, fmt.Errorf("list nested instances: %w", err)
		}
		detail.Lines = append(detail.Lines, OrderLine{
			Item:     byInstance[inst.ID],
			Instance: inst,
			Children: children,
		})
	}
	return detail, nil
}

func quantities(items []database.OrderItem) map[uuid.UUID]int32 {
	m := make(map[uuid.UUID]int32, len(items))
	for _, it := range items {
		m[it.InstanceID] = it.Quantity
	}
	return m
}

func checkCouponList(ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return ErrDuplicateCoupon
		}
		seen[id] = struct{}{}
	}
	return nil
}

// --- Helpers ---

func isValidPickupMethod(s string) bool {
	switch s {
	case enum.PickupDineIn, enum.PickupTakeout, enum.PickupDelivery:
		return true
	}
	return false
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentCash, enum.PaymentLinePay, enum.PaymentFoodpanda, enum.PaymentUberEats:
		return true
	}
	return false
}

func isValidPlatform(s string) bool {
	switch s {
	case enum.PlatformPOS, enum.PlatformOnline, enum.PlatformFoodpanda, enum.PlatformUberEats:
		return true
	}
	return false
}
