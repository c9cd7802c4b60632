package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averith/go-shop-backend/internal/cart"
	"github.com/averith/go-shop-backend/internal/orders"
	"github.com/averith/go-shop-backend/internal/orders/memory"
	"github.com/averith/go-shop-backend/internal/stock"
)

const (
	userAlice = "user-alice"
	userBob   = "user-bob"
	prodTee   = "prod-tee"
)

func seedLine(st *memory.Store, id, user, product, size string, qty, price int, at time.Time) {
	st.SeedCartLine(cart.Line{
		ID:         id,
		UserID:     user,
		ProductID:  product,
		Size:       size,
		Quantity:   qty,
		PriceCents: price,
		CreatedAt:  at,
		UpdatedAt:  at,
	})
}

func available(t *testing.T, st *memory.Store, product, size string) int {
	t.Helper()
	s, err := stock.Decode(st.Stock(product))
	require.NoError(t, err)
	return s.Available(size)
}

func checkoutInput() orders.CheckoutInput {
	return orders.CheckoutInput{FirstAddress: "12 Main St"}
}

func TestCheckoutDecrementsStockAndClearsCart(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 5}`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 3, 1999, time.Now())
	svc := &orders.Service{Store: st}

	o, err := svc.Checkout(context.Background(), userAlice, checkoutInput())
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, userAlice, o.UserID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, "S", o.Items[0].Size)
	assert.Equal(t, 1999, o.Items[0].PriceCents, "price frozen from add time")
	assert.Equal(t, "Basic Tee", o.Items[0].ProductName)

	assert.Equal(t, 2, available(t, st, prodTee, "S"))
	assert.Equal(t, 0, st.CartSize(userAlice))

	got, err := st.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}

func TestCheckoutInsufficientStockRollsBackEverything(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 2}`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 3, 1999, time.Now())
	svc := &orders.Service{Store: st}

	_, err := svc.Checkout(context.Background(), userAlice, checkoutInput())

	var short *orders.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, prodTee, short.ProductID)
	assert.Equal(t, "S", short.Size)
	assert.Equal(t, 2, short.Available)
	assert.Equal(t, 3, short.Requested)

	assert.Equal(t, 2, available(t, st, prodTee, "S"), "stock unchanged")
	assert.Equal(t, 0, st.OrderCount(), "no order row survives")
	assert.Equal(t, 1, st.CartSize(userAlice), "cart untouched")
}

func TestCheckoutPartialShortfallAbortsWholeOrder(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 5}`)
	st.SeedProduct("prod-hoodie", "Hoodie", `{"M": 1}`)
	base := time.Now()
	seedLine(st, "line-1", userAlice, prodTee, "S", 2, 1999, base)
	seedLine(st, "line-2", userAlice, "prod-hoodie", "M", 2, 4999, base.Add(time.Second))
	svc := &orders.Service{Store: st}

	_, err := svc.Checkout(context.Background(), userAlice, checkoutInput())

	var short *orders.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "prod-hoodie", short.ProductID)

	// the first line's decrement must be rolled back too
	assert.Equal(t, 5, available(t, st, prodTee, "S"))
	assert.Equal(t, 1, available(t, st, "prod-hoodie", "M"))
	assert.Equal(t, 0, st.OrderCount())
	assert.Equal(t, 2, st.CartSize(userAlice))
}

func TestCheckoutEmptyCart(t *testing.T) {
	st := memory.New()
	svc := &orders.Service{Store: st}

	_, err := svc.Checkout(context.Background(), userAlice, checkoutInput())
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
	assert.Equal(t, 0, st.OrderCount())
}

func TestCheckoutFilteredToMissingIDsFailsEmptyCart(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 5}`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 1, 1999, time.Now())
	svc := &orders.Service{Store: st}

	in := checkoutInput()
	in.ItemIDs = []string{"no-such-line"}
	_, err := svc.Checkout(context.Background(), userAlice, in)
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
	assert.Equal(t, 1, st.CartSize(userAlice))
}

func TestCheckoutSubsetLeavesOtherLines(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 5, "M": 5}`)
	base := time.Now()
	seedLine(st, "line-1", userAlice, prodTee, "S", 1, 1999, base)
	seedLine(st, "line-2", userAlice, prodTee, "M", 1, 1999, base.Add(time.Second))
	svc := &orders.Service{Store: st}

	in := checkoutInput()
	in.ItemIDs = []string{"line-2"}
	o, err := svc.Checkout(context.Background(), userAlice, in)
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	assert.Equal(t, "M", o.Items[0].Size)
	assert.Equal(t, 5, available(t, st, prodTee, "S"))
	assert.Equal(t, 4, available(t, st, prodTee, "M"))
	assert.Equal(t, 1, st.CartSize(userAlice), "unselected line stays in cart")
}

func TestCheckoutSizelessLineSkipsLedger(t *testing.T) {
	st := memory.New()
	st.SeedProduct("prod-mug", "Mug", `{}`)
	seedLine(st, "line-1", userAlice, "prod-mug", "", 2, 899, time.Now())
	svc := &orders.Service{Store: st}

	o, err := svc.Checkout(context.Background(), userAlice, checkoutInput())
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	assert.Equal(t, "", o.Items[0].Size)
	assert.Equal(t, `{}`, string(st.Stock("prod-mug")), "stock untouched for sizeless products")
}

func TestCheckoutMalformedStockFailsClosed(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `"oops"`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 1, 1999, time.Now())
	svc := &orders.Service{Store: st}

	_, err := svc.Checkout(context.Background(), userAlice, checkoutInput())
	assert.ErrorIs(t, err, stock.ErrMalformedStock)
	assert.Equal(t, 0, st.OrderCount())
	assert.Equal(t, 1, st.CartSize(userAlice))
}

func TestCheckoutListShapeStock(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `[{"size":"S","quantity":5}]`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 3, 1999, time.Now())
	svc := &orders.Service{Store: st}

	_, err := svc.Checkout(context.Background(), userAlice, checkoutInput())
	require.NoError(t, err)

	raw := st.Stock(prodTee)
	assert.Equal(t, byte('['), raw[0], "physical shape preserved")
	assert.Equal(t, 2, available(t, st, prodTee, "S"))
}

func TestConcurrentCheckoutsExactlyOneWins(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 3}`)
	seedLine(st, "line-a", userAlice, prodTee, "S", 3, 1999, time.Now())
	seedLine(st, "line-b", userBob, prodTee, "S", 3, 1999, time.Now())
	svc := &orders.Service{Store: st}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{userAlice, userBob} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = svc.Checkout(context.Background(), user, checkoutInput())
		}(i, user)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var short *orders.InsufficientStockError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, 0, short.Available)
		rejected++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, available(t, st, prodTee, "S"))
	assert.Equal(t, 1, st.OrderCount())
}

func placeOrder(t *testing.T, svc *orders.Service, user string) *orders.Order {
	t.Helper()
	o, err := svc.Checkout(context.Background(), user, checkoutInput())
	require.NoError(t, err)
	return o
}

func TestReturnRestocksAndStoresReason(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 5}`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 3, 1999, time.Now())
	svc := &orders.Service{Store: st}

	o := placeOrder(t, svc, userAlice)
	assert.Equal(t, 2, available(t, st, prodTee, "S"))

	ctx := context.Background()
	for _, next := range []string{"packaging", "on_the_way"} {
		_, err := svc.Transition(ctx, o.ID, next, "")
		require.NoError(t, err)
	}

	got, err := svc.Transition(ctx, o.ID, "returned", "wrong size")
	require.NoError(t, err)

	assert.Equal(t, orders.StatusReturned, got.Status)
	require.NotNil(t, got.ReturnReason)
	assert.Equal(t, "wrong size", *got.ReturnReason)
	assert.Equal(t, 5, available(t, st, prodTee, "S"), "net stock effect of checkout+return is zero")
}

func TestReturnSkipsSizelessItems(t *testing.T) {
	st := memory.New()
	st.SeedProduct("prod-mug", "Mug", `{}`)
	seedLine(st, "line-1", userAlice, "prod-mug", "", 1, 899, time.Now())
	svc := &orders.Service{Store: st}

	o := placeOrder(t, svc, userAlice)
	ctx := context.Background()
	for _, next := range []string{"packaging", "on_the_way", "returned"} {
		_, err := svc.Transition(ctx, o.ID, next, "defective")
		require.NoError(t, err)
	}
	assert.Equal(t, `{}`, string(st.Stock("prod-mug")))
}

func TestReturnIncrementsAbsentSizeFromZero(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 3}`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 3, 1999, time.Now())
	svc := &orders.Service{Store: st}

	o := placeOrder(t, svc, userAlice)
	// the size key survives at zero after a full decrement
	assert.Equal(t, 0, available(t, st, prodTee, "S"))

	ctx := context.Background()
	for _, next := range []string{"packaging", "on_the_way", "returned"} {
		_, err := svc.Transition(ctx, o.ID, next, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, available(t, st, prodTee, "S"))
}

func TestTransitionUnknownStatusRejected(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 5}`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 1, 1999, time.Now())
	svc := &orders.Service{Store: st}

	o := placeOrder(t, svc, userAlice)

	_, err := svc.Transition(context.Background(), o.ID, "shipped", "")
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)

	got, err := svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status, "order unchanged")
}

func TestTransitionOutsideGraphRejected(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 5}`)
	seedLine(st, "line-1", userAlice, prodTee, "S", 1, 1999, time.Now())
	svc := &orders.Service{Store: st}

	o := placeOrder(t, svc, userAlice)

	// in-enum but not reachable from pending
	_, err := svc.Transition(context.Background(), o.ID, "returned", "")
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)
	assert.Equal(t, 4, available(t, st, prodTee, "S"), "no restock on rejected transition")
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc := &orders.Service{Store: memory.New()}
	_, err := svc.Transition(context.Background(), "no-such-order", "packaging", "")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	st := memory.New()
	st.SeedProduct(prodTee, "Basic Tee", `{"S": 9, "M": 9}`)
	base := time.Now()
	seedLine(st, "line-1", userAlice, prodTee, "S", 1, 1999, base)
	seedLine(st, "line-2", userBob, prodTee, "M", 1, 1999, base)
	svc := &orders.Service{Store: st}

	placeOrder(t, svc, userAlice)
	placeOrder(t, svc, userBob)

	mine, err := svc.ListMine(context.Background(), userAlice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, userAlice, mine[0].UserID)

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
