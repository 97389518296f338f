package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"storefront-cart/internal/cart"
	"storefront-cart/internal/cartclient"
	"storefront-cart/internal/config"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/session"

	"go.uber.org/zap"
)

const usage = `usage: cartsync [flags] <command> [args]

commands:
  login <email> <password>       sign in and remember the token
  register <email> <password>    create an account and sign in
  logout                         forget the stored token
  show                           print the cart
  add <productID> <size> <qty>   add a product variant
  set <itemID> <qty>             change a line's quantity
  rm <itemID>                    remove a line
  clear                          empty the cart
`

var (
	ErrUsage         = errors.New("invalid usage")
	ErrNotSignedIn   = errors.New("not signed in; run cartsync login")
	ErrCartNotLoaded = errors.New("cart could not be loaded")
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "cartsync:", err)
		if errors.Is(err, ErrUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		logger.Sync()
		os.Exit(1)
	}
}

// app is one session bound to one synchronizer, as a storefront tab would hold.
type app struct {
	provider *session.Provider
	client   *cartclient.Client
	sync     *cart.Synchronizer
	out      io.Writer
	log      *zap.Logger
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cartsync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	backend := fs.String("backend", cfg.BackendURL, "cart service base URL")
	token := fs.String("token", cfg.AccessToken, "access token to use instead of the stored one")
	tokenFile := fs.String("token-file", cfg.TokenFile, "where the access token is stored")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() == 0 {
		return ErrUsage
	}

	path := *tokenFile
	if path == "" {
		path = session.DefaultTokenPath()
	}

	a, err := newApp(cfg, *backend, session.FileStore{Path: path}, out)
	if err != nil {
		return err
	}
	defer a.sync.Close()

	unsubscribe := a.provider.Subscribe(func(session.Status) { a.sync.SessionChanged() })
	defer unsubscribe()

	if *token != "" {
		if err := a.provider.Login(*token); err != nil {
			return err
		}
	} else if err := a.provider.Bootstrap(); err != nil {
		return err
	}
	a.sync.Wait()

	return a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}

func newApp(cfg *config.Config, backend string, store session.TokenStore, out io.Writer) (*app, error) {
	provider := session.NewProvider(store)

	client, err := cartclient.New(provider, cartclient.Options{
		BaseURL:        backend,
		Timeout:        cfg.RequestTimeout,
		RPS:            cfg.ClientRPS,
		Burst:          cfg.ClientBurst,
		OnUnauthorized: provider.Logout,
	})
	if err != nil {
		return nil, err
	}

	sync := cart.New(client, provider, cart.Options{
		Debounce:       cfg.Debounce,
		RequestTimeout: cfg.RequestTimeout,
	})

	return &app{
		provider: provider,
		client:   client,
		sync:     sync,
		out:      out,
		log:      logger.Named("cartsync"),
	}, nil
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login", "register":
		if len(args) != 2 {
			return ErrUsage
		}
		return a.signIn(ctx, cmd, args[0], args[1])
	case "logout":
		a.provider.Logout()
		fmt.Fprintln(a.out, "signed out")
		return nil
	}

	if err := a.ready(); err != nil {
		return err
	}

	switch cmd {
	case "show":
	case "add":
		if len(args) != 3 {
			return ErrUsage
		}
		productID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: product id %q", ErrUsage, args[0])
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: quantity %q", ErrUsage, args[2])
		}
		req := cart.AddItemRequest{ProductID: productID, Size: args[1], Quantity: qty}
		if err := a.sync.AddItem(ctx, req, cart.ProductInfo{}); err != nil {
			return err
		}
	case "set":
		if len(args) != 2 {
			return ErrUsage
		}
		itemID, qty, err := parseItemQuantity(args[0], args[1])
		if err != nil {
			return err
		}
		a.sync.UpdateQuantity(itemID, qty)
	case "rm":
		if len(args) != 1 {
			return ErrUsage
		}
		itemID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: item id %q", ErrUsage, args[0])
		}
		a.sync.RemoveItem(itemID)
	case "clear":
		// The synchronizer only resets local state; the server cart is
		// emptied here the way a completed checkout would.
		if err := a.client.ClearCart(ctx); err != nil {
			return err
		}
		a.sync.ClearCart()
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}

	// A one-shot process cannot wait out the debounce window.
	if err := a.sync.Flush(ctx); err != nil {
		a.log.Warn("pending updates failed", zap.Error(err))
	}
	a.sync.Wait()

	return printState(a.out, a.sync.State())
}

func (a *app) signIn(ctx context.Context, cmd, email, password string) error {
	signIn := a.client.Login
	if cmd == "register" {
		signIn = a.client.Register
	}

	token, err := signIn(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.provider.Login(token); err != nil {
		return err
	}
	a.sync.Wait()

	fmt.Fprintf(a.out, "signed in as user %d\n", a.provider.Status().UserID)
	return printState(a.out, a.sync.State())
}

func (a *app) ready() error {
	if !a.provider.IsAuthenticated() {
		return ErrNotSignedIn
	}
	st := a.sync.State()
	if st.Error != "" {
		return fmt.Errorf("%w: %s", ErrCartNotLoaded, st.Error)
	}
	return nil
}

func parseItemQuantity(rawID, rawQty string) (int64, int, error) {
	itemID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: item id %q", ErrUsage, rawID)
	}
	qty, err := strconv.Atoi(rawQty)
	if err != nil || qty < 1 {
		return 0, 0, fmt.Errorf("%w: quantity %q", ErrUsage, rawQty)
	}
	return itemID, qty, nil
}

func printState(out io.Writer, st cart.State) error {
	if st.Error != "" {
		fmt.Fprintln(out, "error:", st.Error)
	}
	if st.Cart == nil {
		fmt.Fprintln(out, "no cart")
		return nil
	}
	if len(st.Cart.Items) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRODUCT\tSIZE\tQTY\tUNIT\tTOTAL")
	for _, it := range st.Cart.Items {
		name := strconv.FormatInt(it.ProductID, 10)
		if it.Name != nil && *it.Name != "" {
			name = *it.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			it.ID, name, it.Size, it.Quantity, it.UnitPrice.StringFixed(2), it.TotalPrice.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "items: %d  subtotal: %s  total: %s\n",
		st.ItemCount, st.Subtotal.StringFixed(2), st.Total.StringFixed(2))
	return nil
}
