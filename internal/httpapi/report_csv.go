package httpapi

import (
	"bytes"
	"encoding/csv"
	"slices"
	"strconv"

	"flowershop/backend/internal/domain"
)

// salesReportToCSV flattens a dashboard into section,key,value rows.
func salesReportToCSV(report domain.SalesReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "date", report.Date},
		{"summary", "timezone", report.Timezone},
		{"summary", "today_total", report.TodayTotal.StringFixed(2)},
		{"summary", "today_sales", strconv.Itoa(len(report.TodaySales))},
		{"summary", "week_total", report.WeekTotal.StringFixed(2)},
		{"summary", "week_sales", strconv.Itoa(report.WeekSalesCount)},
		{"summary", "average_sale", report.AverageSale.StringFixed(2)},
		{"summary", "total_customers", strconv.Itoa(report.TotalCustomers)},
	}
	for _, day := range report.LastSevenDays {
		rows = append(rows,
			[]string{"day", day.Date + "_total", day.TotalAmount.StringFixed(2)},
			[]string{"day", day.Date + "_sales", strconv.Itoa(day.Count)},
		)
	}
	for _, flower := range report.TopFlowers {
		rows = append(rows,
			[]string{"top_flower", flower.FlowerName + "_sold", strconv.Itoa(flower.TotalQuantitySold)},
			[]string{"top_flower", flower.FlowerName + "_revenue", flower.TotalRevenue.StringFixed(2)},
		)
	}

	methods := make([]string, 0, len(report.PaymentMethods))
	for method := range report.PaymentMethods {
		methods = append(methods, string(method))
	}
	slices.Sort(methods)
	for _, method := range methods {
		rows = append(rows, []string{"payment", method, strconv.Itoa(report.PaymentMethods[domain.PaymentMethod(method)])})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
