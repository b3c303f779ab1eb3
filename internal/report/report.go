package report

import (
	"sort"
	"time"

	"mitienda/client/internal/domain"
	"mitienda/client/internal/money"
)

// Summary aggregates a set of income transactions into the figures the sales
// report shows.
type Summary struct {
	TotalSales    float64
	TotalProfit   float64
	SalesCount    int
	AverageTicket float64
	TopProducts   []ProductRevenue
}

// ProductRevenue is one line of the top-products ranking.
type ProductRevenue struct {
	ProductID int64
	Name      string
	Quantity  int
	Revenue   float64
}

// BuildSummary derives the sales summary from income transactions. Profit is
// estimated against the catalog's current cost prices; transactions whose
// product is no longer in the catalog contribute revenue but no profit
// estimate. At most the top 5 products by revenue are ranked.
func BuildSummary(transactions []domain.Transaction, catalog []domain.Product) Summary {
	costs := make(map[int64]domain.Product, len(catalog))
	for _, p := range catalog {
		costs[p.ID] = p
	}

	var sales, profits []float64
	byProduct := make(map[int64]*ProductRevenue)
	count := 0
	for _, t := range transactions {
		if t.Type != domain.TxIncome {
			continue
		}
		count++
		sales = append(sales, t.Amount)

		prod, known := costs[t.ProductID]
		if known {
			costBasis := money.Mul(prod.CostPrice, float64(t.Quantity))
			profits = append(profits, money.Sum(t.Amount, -costBasis))
		}

		if t.ProductID > 0 {
			line, ok := byProduct[t.ProductID]
			if !ok {
				line = &ProductRevenue{ProductID: t.ProductID, Name: prod.Name}
				byProduct[t.ProductID] = line
			}
			line.Quantity += t.Quantity
			line.Revenue = money.Sum(line.Revenue, t.Amount)
		}
	}

	top := make([]ProductRevenue, 0, len(byProduct))
	for _, line := range byProduct {
		top = append(top, *line)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Revenue != top[j].Revenue {
			return top[i].Revenue > top[j].Revenue
		}
		return top[i].ProductID < top[j].ProductID
	})
	if len(top) > 5 {
		top = top[:5]
	}

	total := money.Sum(sales...)
	avg := 0.0
	if count > 0 {
		avg = money.Round2(total / float64(count))
	}

	return Summary{
		TotalSales:    total,
		TotalProfit:   money.Sum(profits...),
		SalesCount:    count,
		AverageTicket: avg,
		TopProducts:   top,
	}
}

// DayGroup is one calendar day of transactions, newest day first in the
// grouped output.
type DayGroup struct {
	Date         time.Time
	Transactions []domain.Transaction
	Totals       domain.Totals
}

// GroupByDate buckets transactions per calendar day in the transaction's own
// location and totals each bucket.
func GroupByDate(transactions []domain.Transaction) []DayGroup {
	buckets := make(map[time.Time][]domain.Transaction)
	for _, t := range transactions {
		d := t.TransactionDate
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		buckets[day] = append(buckets[day], t)
	}

	groups := make([]DayGroup, 0, len(buckets))
	for day, list := range buckets {
		var income, expense []float64
		for _, t := range list {
			switch t.Type {
			case domain.TxIncome:
				income = append(income, t.Amount)
			case domain.TxExpense:
				expense = append(expense, t.Amount)
			}
		}
		in := money.Sum(income...)
		out := money.Sum(expense...)
		groups = append(groups, DayGroup{
			Date:         day,
			Transactions: list,
			Totals:       domain.Totals{Income: in, Expense: out, Net: money.Round2(in - out)},
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date.After(groups[j].Date) })
	return groups
}

// MonthlyFixedBurden normalizes active fixed expenses to a monthly figure:
// weekly amounts scale by 52/12, yearly amounts divide by 12.
func MonthlyFixedBurden(expenses []domain.FixedExpense) float64 {
	var monthly []float64
	for _, fe := range expenses {
		if !fe.Active {
			continue
		}
		switch fe.Frequency {
		case domain.FrequencyMonthly:
			monthly = append(monthly, fe.Amount)
		case domain.FrequencyWeekly:
			monthly = append(monthly, fe.Amount*52/12)
		case domain.FrequencyYearly:
			monthly = append(monthly, fe.Amount/12)
		}
	}
	return money.Sum(monthly...)
}
