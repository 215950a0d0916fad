package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/query"
	"github.com/verte-zerg/bookdesk/internal/stats"
)

var (
	booksSearch string
	booksPage   int

	bookTitle  string
	bookAuthor string
	bookISBN   string
	bookPrice  string
	bookStock  int
)

func newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage the catalog",
	}
	cmd.AddCommand(newBooksListCmd())
	cmd.AddCommand(newBooksShowCmd())
	cmd.AddCommand(newBooksAddCmd())
	cmd.AddCommand(newBooksEditCmd())
	cmd.AddCommand(newBooksDeleteCmd())
	return cmd
}

func newBooksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE:  runBooksListCmd,
	}
	cmd.Flags().StringVar(&booksSearch, "search", "", "filter by title or author")
	cmd.Flags().IntVar(&booksPage, "page", 1, "page number")
	return cmd
}

func runBooksListCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)
	if err := requireSession(a); err != nil {
		return err
	}
	if booksPage < 1 {
		return fmt.Errorf("--page must be >= 1")
	}

	books, err := a.ListBooks(cmd.Context())
	if err != nil {
		return err
	}
	res := query.Books(books, query.Options{Search: booksSearch}, booksPage)
	out := cmd.OutOrStdout()
	if res.Matches == 0 {
		_, err := fmt.Fprintln(out, "No books found.")
		return err
	}
	rows := make([][]string, 0, len(res.Items))
	for _, b := range res.Items {
		rows = append(rows, bookRow(b, a.Settings.Currency))
	}
	if err := printTable(out, []string{"ID", "Title", "Author", "ISBN", "Price", "Stock"}, rows, map[int]bool{4: true, 5: true}); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Page %d/%d  %d matches\n", res.Page, res.TotalPages, res.Matches)
	return err
}

func bookRow(b model.Book, currency string) []string {
	return []string{
		b.ID,
		stats.Truncate(b.Title, 40),
		stats.Truncate(b.Author, 24),
		b.ISBN,
		stats.FormatMoney(b.Price, currency),
		strconv.Itoa(b.Stock),
	}
}

func printTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range stats.FormatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newBooksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireSession(a); err != nil {
				return err
			}
			book, err := a.Gateway.GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printBook(cmd.OutOrStdout(), book, a.Settings.Currency)
		},
	}
}

func printBook(w io.Writer, b model.Book, currency string) error {
	_, err := fmt.Fprintf(w, "ID:     %s\nTitle:  %s\nAuthor: %s\nISBN:   %s\nPrice:  %s\nStock:  %d\n",
		b.ID, b.Title, b.Author, b.ISBN, stats.FormatMoney(b.Price, currency), b.Stock)
	return err
}

func addBookFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&bookTitle, "title", "", "title")
	cmd.Flags().StringVar(&bookAuthor, "author", "", "author")
	cmd.Flags().StringVar(&bookISBN, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&bookPrice, "price", "", "price, e.g. 39.90")
	cmd.Flags().IntVar(&bookStock, "stock", 0, "copies in stock")
}

// applyBookFlags overlays the flags set on the command line onto in.
func applyBookFlags(cmd *cobra.Command, in *model.BookInput) error {
	flags := cmd.Flags()
	if flags.Changed("title") {
		in.Title = bookTitle
	}
	if flags.Changed("author") {
		in.Author = bookAuthor
	}
	if flags.Changed("isbn") {
		in.ISBN = bookISBN
	}
	if flags.Changed("price") {
		price, err := decimal.NewFromString(bookPrice)
		if err != nil {
			return api.Validation("invalid --price %q", bookPrice)
		}
		in.Price = price
	}
	if flags.Changed("stock") {
		in.Stock = bookStock
	}
	return nil
}

func newBooksAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in model.BookInput
			if err := applyBookFlags(cmd, &in); err != nil {
				return err
			}
			if err := api.ValidateBook(in); err != nil {
				return err
			}
			a, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireSession(a); err != nil {
				return err
			}
			book, err := a.Gateway.CreateBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.Log.WithField("book_id", book.ID).Info("book created")
			return printBook(cmd.OutOrStdout(), book, a.Settings.Currency)
		},
	}
	addBookFlags(cmd)
	return cmd
}

func newBooksEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireSession(a); err != nil {
				return err
			}
			ctx := cmd.Context()
			current, err := a.Gateway.GetBook(ctx, args[0])
			if err != nil {
				return err
			}
			in := current.Input()
			if err := applyBookFlags(cmd, &in); err != nil {
				return err
			}
			book, err := a.Gateway.UpdateBook(ctx, current.ID, in)
			if err != nil {
				return err
			}
			a.Log.WithField("book_id", book.ID).Info("book updated")
			return printBook(cmd.OutOrStdout(), book, a.Settings.Currency)
		},
	}
	addBookFlags(cmd)
	return cmd
}

func newBooksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireSession(a); err != nil {
				return err
			}
			if err := a.DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return err
		},
	}
}
