package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mitienda/client/internal/cache"
	"mitienda/client/internal/config"
	"mitienda/client/internal/dashboard"
	"mitienda/client/internal/daterange"
	"mitienda/client/internal/domain"
	"mitienda/client/internal/port"
	"mitienda/client/internal/port/memory"
	pgport "mitienda/client/internal/port/postgres"
	"mitienda/client/internal/port/rest"
	"mitienda/client/internal/report"
	"mitienda/client/internal/sale"
	"mitienda/client/internal/session"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess := session.New()
	closers := make([]func() error, 0, 2)

	var dataPort port.DataPort
	var auth port.Authenticator

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgport.New(ctx, cfg.DatabaseURL, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to fall back", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("schema setup failed: %v", err)
		}
		dataPort = pg
		auth = pg
		closers = append(closers, pg.Close)
		log.Println("data port: postgres")
	case cfg.APIBaseURL != "":
		client := rest.New(cfg.APIBaseURL, sess)
		dataPort = client
		auth = client
		log.Println("data port: rest")
	default:
		seeded := memory.NewSeeded()
		dataPort = seeded
		auth = seeded
		log.Println("data port: in-memory (demo)")
	}

	productCache := cache.ProductCache(cache.NoopProductCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisProductCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			productCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	if cfg.Username != "" {
		resp, err := auth.Login(ctx, domain.LoginRequest{Username: cfg.Username, Password: cfg.Password})
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := sess.SetToken(resp.Token); err != nil {
			log.Fatalf("token rejected: %v", err)
		}
		log.Printf("logged in as %s", resp.Username)
	}

	catalog := cache.NewCachedCatalog(dataPort, productCache, cfg.ProductCacheTTL)
	engine := sale.NewEngine(catalog, dataPort)
	if err := engine.LoadProducts(ctx); err != nil {
		log.Printf("product load failed: %v", err)
	}

	scheduler := dashboard.NewScheduler(dataPort)
	scheduler.Subscribe(func(state domain.AggregationState) {
		fmt.Printf("dashboard: %d transactions | income %.2f | expense %.2f | net %.2f\n",
			len(state.Transactions), state.Totals.Income, state.Totals.Expense, state.Totals.Net)
	})
	scheduler.OnError(func(err error) {
		fmt.Printf("dashboard: refresh failed: %v\n", err)
	})
	scheduler.OnLoading(func(loading bool) {
		if loading {
			fmt.Println("dashboard: loading...")
		}
	})
	scheduler.Start(cfg.RefreshPeriod, cfg.DebounceWindow, dashboard.Filter{
		Mode: daterange.Mode(cfg.DefaultRangeMode),
	})
	defer scheduler.Stop()

	go readCommands(scheduler, dataPort)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	scheduler.Stop()
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("client stopped")
}

// readCommands drives the scheduler from stdin: r refreshes, b backgrounds,
// f foregrounds, 7/30 switch the range mode, s prints the sales summary,
// q quits.
func readCommands(scheduler *dashboard.Scheduler, dataPort port.DataPort) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "r":
			scheduler.Refresh()
		case "b":
			scheduler.EnterBackground()
			fmt.Println("dashboard: backgrounded")
		case "f":
			scheduler.EnterForeground()
			fmt.Println("dashboard: foregrounded")
		case "7":
			scheduler.SetFilter(dashboard.Filter{Mode: daterange.Last7Days})
		case "30":
			scheduler.SetFilter(dashboard.Filter{Mode: daterange.Last30Days})
		case "s":
			printSummary(dataPort)
		case "q":
			p, _ := os.FindProcess(os.Getpid())
			_ = p.Signal(syscall.SIGTERM)
			return
		}
	}
}

func printSummary(dataPort port.DataPort) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	r := daterange.LastNDays(30, time.Now())
	transactions, err := dataPort.ListTransactions(ctx, domain.TransactionFilter{Start: r.Start, End: r.End})
	if err != nil {
		fmt.Printf("summary: %v\n", err)
		return
	}
	products, err := dataPort.ListProducts(ctx, false)
	if err != nil {
		fmt.Printf("summary: %v\n", err)
		return
	}

	summary := report.BuildSummary(transactions, products)
	fmt.Printf("last 30 days: %d sales | revenue %.2f | profit %.2f | avg ticket %.2f\n",
		summary.SalesCount, summary.TotalSales, summary.TotalProfit, summary.AverageTicket)
	for i, line := range summary.TopProducts {
		fmt.Printf("  %d. %s x%d (%.2f)\n", i+1, line.Name, line.Quantity, line.Revenue)
	}

	expenses, err := dataPort.ListFixedExpenses(ctx, true)
	if err != nil {
		fmt.Printf("summary: %v\n", err)
		return
	}
	fmt.Printf("monthly fixed burden: %.2f\n", report.MonthlyFixedBurden(expenses))
}
