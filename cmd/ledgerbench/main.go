// Command ledgerbench 压测下单吞吐与并发接单的乐观锁冲突。
// 数据库配置与服务一致，读取 config.yaml / LEDGER_* 环境变量。
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/d60-Lab/market-ledger/config"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/internal/service"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
	"github.com/d60-Lab/market-ledger/pkg/database"
)

type BenchResult struct {
	Name            string
	Duration        time.Duration
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	QPS             float64
	AvgLatency      time.Duration
	P50Latency      time.Duration
	P95Latency      time.Duration
	P99Latency      time.Duration
}

type discardDispatcher struct{}

func (discardDispatcher) Dispatch(context.Context, *model.SellerNotification) error { return nil }

func main() {
	orders := flag.Int("orders", 2000, "orders to place")
	concurrency := flag.Int("c", 50, "concurrent workers")
	sellers := flag.Int("sellers", 20, "distinct sellers")
	racers := flag.Int("racers", 8, "goroutines racing to accept the same order")
	flag.Parse()

	cfg, err := config.Load()
	must(err)
	cfg.Database.AutoMigrate = true
	db, err := database.InitDB(cfg)
	must(err)
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	store := repository.NewStore(db)

	fmt.Println("===== 账本压测 =====")
	fmt.Printf("订单数: %d  并发: %d  卖家数: %d  抢单协程: %d\n\n", *orders, *concurrency, *sellers, *racers)

	productIDs := seedProducts(ctx, store, *sellers)
	lifecycle := service.NewOrderLifecycle(store, service.NewProductDirectory(store.Products), discardDispatcher{}, nil)

	fmt.Println("===== 下单 =====")
	placed, placeResult := benchPlace(ctx, lifecycle, productIDs, *orders, *concurrency)
	printBenchResult(placeResult)

	fmt.Println("\n===== 并发接单（同一订单） =====")
	acceptResult, winners := benchContendedAccept(ctx, lifecycle, placed, productIDs, *racers)
	printBenchResult(acceptResult)
	fmt.Printf("每单成功接单次数应为 1，实际异常订单数: %d\n", winners)

	fmt.Println("\n✅ 压测完成！")
}

// seedProducts 每个卖家一个商品
func seedProducts(ctx context.Context, store *repository.Store, sellers int) map[string]string {
	out := make(map[string]string, sellers)
	now := time.Now()
	for i := 0; i < sellers; i++ {
		sellerID := fmt.Sprintf("bench-seller-%03d", i)
		p := &model.Product{ID: uuid.NewString(), SellerID: sellerID, Name: "bench " + sellerID, CreatedAt: now, UpdatedAt: now}
		must(store.Products.Upsert(ctx, p))
		out[p.ID] = sellerID
	}
	return out
}

func benchPlace(ctx context.Context, lifecycle service.OrderLifecycle, products map[string]string, n, concurrency int) ([]*model.Order, *BenchResult) {
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}

	var (
		total, success, failed int64
		latencies              []time.Duration
		placed                 []*model.Order
		mu                     sync.Mutex
		wg                     sync.WaitGroup
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; i < n; i += concurrency {
				pid := ids[i%len(ids)]
				in := service.PlaceOrderInput{
					BuyerID:       fmt.Sprintf("bench-buyer-%d", i),
					Subtotal:      decimal.NewFromInt(20),
					Total:         decimal.NewFromInt(20),
					PaymentStatus: model.PaymentStatusPaid,
					Items:         []service.PlaceOrderItem{{ProductID: pid, UnitPrice: decimal.NewFromInt(10), Quantity: 2}},
				}
				reqStart := time.Now()
				order, err := lifecycle.PlaceOrder(ctx, in)
				latency := time.Since(reqStart)

				atomic.AddInt64(&total, 1)
				mu.Lock()
				latencies = append(latencies, latency)
				if err == nil {
					placed = append(placed, order)
				}
				mu.Unlock()
				if err != nil {
					if atomic.AddInt64(&failed, 1) <= 10 {
						fmt.Printf("下单失败: %v\n", err)
					}
					continue
				}
				atomic.AddInt64(&success, 1)
			}
		}(w)
	}

	progressDone := make(chan struct{})
	go progress(start, &total, int64(n), progressDone)
	wg.Wait()
	close(progressDone)

	return placed, calculateResult("下单", time.Since(start), total, success, failed, latencies)
}

// benchContendedAccept 多个协程同时接同一笔订单，只允许一个成功
func benchContendedAccept(ctx context.Context, lifecycle service.OrderLifecycle, orders []*model.Order, products map[string]string, racers int) (*BenchResult, int) {
	var (
		total, success, failed int64
		latencies              []time.Duration
		mu                     sync.Mutex
		anomalies              int
	)

	start := time.Now()
	for _, order := range orders {
		sellerID := products[order.Items[0].ProductID]
		var wins int64
		var wg sync.WaitGroup
		for r := 0; r < racers; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				reqStart := time.Now()
				_, err := lifecycle.AcceptOrder(ctx, service.AcceptOrderInput{OrderID: order.ID, SellerID: sellerID})
				latency := time.Since(reqStart)

				atomic.AddInt64(&total, 1)
				mu.Lock()
				latencies = append(latencies, latency)
				mu.Unlock()
				switch {
				case err == nil:
					atomic.AddInt64(&wins, 1)
					atomic.AddInt64(&success, 1)
				case apperr.IsKind(err, apperr.KindInvalidState):
					// 输给了并发的接单请求
				default:
					if atomic.AddInt64(&failed, 1) <= 10 {
						fmt.Printf("接单异常: %v\n", err)
					}
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			anomalies++
		}
	}

	return calculateResult("并发接单", time.Since(start), total, success, failed, latencies), anomalies
}

func progress(start time.Time, done *int64, total int64, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			current := atomic.LoadInt64(done)
			if current == 0 {
				continue
			}
			elapsed := time.Since(start)
			fmt.Printf("  📊 进度: %d/%d (%.1f%%) | ⏱️  已用时: %v | 🚀 QPS: %.0f\n",
				current, total, float64(current)/float64(total)*100, elapsed.Round(time.Second), float64(current)/elapsed.Seconds())
		case <-stop:
			return
		}
	}
}

func calculateResult(name string, duration time.Duration, total, success, failed int64, latencies []time.Duration) *BenchResult {
	res := &BenchResult{
		Name:            name,
		Duration:        duration,
		TotalRequests:   total,
		SuccessRequests: success,
		FailedRequests:  failed,
	}
	if len(latencies) == 0 {
		return res
	}
	res.QPS = float64(total) / duration.Seconds()

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	res.AvgLatency = sum / time.Duration(len(sorted))
	res.P50Latency = percentile(sorted, 0.50)
	res.P95Latency = percentile(sorted, 0.95)
	res.P99Latency = percentile(sorted, 0.99)
	return res
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(math.Ceil(float64(len(sorted))*p)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func printBenchResult(result *BenchResult) {
	fmt.Printf("名称: %s\n", result.Name)
	fmt.Printf("耗时: %v\n", result.Duration)
	fmt.Printf("总请求数: %d\n", result.TotalRequests)
	fmt.Printf("成功请求: %d\n", result.SuccessRequests)
	fmt.Printf("失败请求: %d\n", result.FailedRequests)
	fmt.Printf("QPS: %.2f\n", result.QPS)
	fmt.Printf("平均延迟: %v\n", result.AvgLatency)
	fmt.Printf("P50 延迟: %v\n", result.P50Latency)
	fmt.Printf("P95 延迟: %v\n", result.P95Latency)
	fmt.Printf("P99 延迟: %v\n", result.P99Latency)
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
