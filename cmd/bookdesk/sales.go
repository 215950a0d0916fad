package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/app"
	"github.com/verte-zerg/bookdesk/internal/config"
	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/query"
	"github.com/verte-zerg/bookdesk/internal/stats"
)

var (
	salesSearch string
	salesFrom   string
	salesTo     string
	salesPage   int

	saleBook     string
	saleSeller   string
	saleQuantity int

	dashboardTop        int
	dashboardRankWindow string
	dashboardWidth      int
)

func newSalesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "List and record sales",
	}
	cmd.AddCommand(newSalesListCmd())
	cmd.AddCommand(newSalesAddCmd())
	return cmd
}

func newSalesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sales, newest first",
		Args:  cobra.NoArgs,
		RunE:  runSalesListCmd,
	}
	cmd.Flags().StringVar(&salesSearch, "search", "", "filter by book title or seller name")
	cmd.Flags().StringVar(&salesFrom, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&salesTo, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&salesPage, "page", 1, "page number")
	return cmd
}

func runSalesListCmd(cmd *cobra.Command, _ []string) error {
	from, err := query.ParseDate(salesFrom, time.Local)
	if err != nil {
		return fmt.Errorf("invalid --from value: %w", err)
	}
	to, err := query.ParseDate(salesTo, time.Local)
	if err != nil {
		return fmt.Errorf("invalid --to value: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("--to must not be before --from")
	}
	if salesPage < 1 {
		return fmt.Errorf("--page must be >= 1")
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)
	if err := requireSession(a); err != nil {
		return err
	}
	sales, err := a.ListSales(cmd.Context())
	if err != nil {
		return err
	}

	res := query.Sales(sales, query.Options{Search: salesSearch, From: from, To: to}, salesPage, time.Local)
	out := cmd.OutOrStdout()
	if res.Matches == 0 {
		_, err := fmt.Fprintln(out, "No sales found.")
		return err
	}
	rows := make([][]string, 0, len(res.Items))
	for _, s := range res.Items {
		date := ""
		if !s.Date.IsZero() {
			date = s.Date.Local().Format("02/01/2006 15:04")
		}
		rows = append(rows, []string{
			date,
			stats.Truncate(s.Book.Title, 40),
			stats.Truncate(s.User.Name, 24),
			strconv.Itoa(s.Quantity),
			stats.FormatMoney(s.Total, a.Settings.Currency),
		})
	}
	if err := printTable(out, []string{"Date", "Book", "Seller", "Qty", "Total"}, rows, map[int]bool{3: true, 4: true}); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Page %d/%d  %d matches\n", res.Page, res.TotalPages, res.Matches)
	return err
}

func newSalesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a sale",
		Args:  cobra.NoArgs,
		RunE:  runSalesAddCmd,
	}
	cmd.Flags().StringVar(&saleBook, "book", "", "book ID or exact title")
	cmd.Flags().StringVar(&saleSeller, "seller", "", "seller ID or email (ignored when sales.seller = \"self\")")
	cmd.Flags().IntVar(&saleQuantity, "quantity", 1, "copies sold")
	return cmd
}

func runSalesAddCmd(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(saleBook) == "" {
		return api.Validation("--book is required")
	}
	if saleQuantity < 1 {
		return api.Validation("--quantity must be >= 1")
	}
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)
	if err := requireSession(a); err != nil {
		return err
	}
	ctx := cmd.Context()

	form, err := a.Gateway.LoadSaleForm(ctx)
	if err != nil {
		return err
	}
	book, err := findBook(form.Books, saleBook)
	if err != nil {
		return err
	}
	sellerID := ""
	if a.SellerMode() == app.SellerSelect {
		if strings.TrimSpace(saleSeller) == "" {
			return api.Validation("--seller is required (see: bookdesk users)")
		}
		seller, err := findUser(form.Users, saleSeller)
		if err != nil {
			return err
		}
		sellerID = seller.ID
	}

	sale, err := a.RecordSale(ctx, book.ID, sellerID, saleQuantity)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Recorded sale %s: %d x %s, total %s\n",
		sale.ID, sale.Quantity, book.Title, stats.FormatMoney(sale.Total, a.Settings.Currency))
	return err
}

func findBook(books []model.Book, ref string) (model.Book, error) {
	ref = strings.TrimSpace(ref)
	for _, b := range books {
		if b.ID == ref {
			return b, nil
		}
	}
	var matches []model.Book
	for _, b := range books {
		if strings.EqualFold(b.Title, ref) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return model.Book{}, fmt.Errorf("book %q: %w", ref, api.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.Book{}, api.Validation("title %q matches %d books; use the ID", ref, len(matches))
	}
}

func findUser(users []model.User, ref string) (model.User, error) {
	ref = strings.TrimSpace(ref)
	for _, u := range users {
		if u.ID == ref || (u.Email != "" && strings.EqualFold(u.Email, ref)) {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("seller %q: %w", ref, api.ErrNotFound)
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List sellers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireSession(a); err != nil {
				return err
			}
			users, err := a.Gateway.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{u.ID, u.Name, u.Email})
			}
			return printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Email"}, rows, nil)
		},
	}
}

func newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the sales dashboard",
		Args:  cobra.NoArgs,
		RunE:  runDashboardCmd,
	}
	cmd.Flags().IntVar(&dashboardTop, "top", config.DefaultTop, "entries per ranking")
	cmd.Flags().StringVar(&dashboardRankWindow, "rank-window", config.DefaultRankWindow, "ranking window (all, month, today)")
	cmd.Flags().IntVar(&dashboardWidth, "width", 0, "plot width (default: terminal width)")
	return cmd
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, func(s *config.Settings) {
		applyConfig(cmd, "top", &dashboardTop, s.Top)
		applyConfig(cmd, "rank-window", &dashboardRankWindow, s.RankWindow)
		s.Top = dashboardTop
		s.RankWindow = dashboardRankWindow
	})
	if err != nil {
		return err
	}
	defer closeApp(a)
	if err := requireSession(a); err != nil {
		return err
	}
	d, err := a.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	return stats.RenderDashboard(cmd.OutOrStdout(), d, stats.RenderOptions{
		Currency: a.Settings.Currency,
		Width:    dashboardWidth,
	})
}
