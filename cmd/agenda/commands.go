package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/dashboard"
	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/identity"
	"workshop-agenda/internal/model"
	"workshop-agenda/internal/rpc"
	"workshop-agenda/internal/ticket"
)

const (
	timeLayout = "2006-01-02 15:04"
	dateLayout = "2006-01-02"
	boardWait  = 10 * time.Second
)

func describe(err error) error {
	if errors.Is(err, identity.ErrSignedOut) || errors.Is(err, dashboard.ErrSignedOut) {
		return errors.New("not signed in, run: agenda login")
	}
	if s, ok := status.FromError(err); ok {
		return fmt.Errorf("%s: %s", strings.ToLower(s.Code().String()), s.Message())
	}
	return err
}

// services collects repeated -service flags.
type services []string

func (s *services) String() string { return strings.Join(*s, ", ") }

func (s *services) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type formFlags struct {
	client   string
	car      string
	plate    string
	phone    string
	cpf      string
	kind     string
	obs      string
	services services
}

func (f *formFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.client, "client", "", "client name")
	fs.StringVar(&f.car, "car", "", "car model")
	fs.StringVar(&f.plate, "plate", "", "license plate")
	fs.StringVar(&f.phone, "phone", "", "phone")
	fs.StringVar(&f.cpf, "cpf", "", "CPF")
	fs.StringVar(&f.kind, "type", "", "service type")
	fs.StringVar(&f.obs, "obs", "", "observations")
	fs.Var(&f.services, "service", "service line (repeatable)")
}

// apply overwrites the fields whose flags were given on the command line.
func (f *formFlags) apply(fs *flag.FlagSet, form model.EventForm) model.EventForm {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "client":
			form.ClientName = f.client
		case "car":
			form.CarModel = f.car
		case "plate":
			form.LicensePlate = f.plate
		case "phone":
			form.Phone = f.phone
		case "cpf":
			form.CPF = f.cpf
		case "type":
			form.ServiceType = f.kind
		case "obs":
			form.Observations = f.obs
		case "service":
			form.Services = f.services
		}
	})
	return form
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want %s", s, timeLayout)
	}
	return t, nil
}

func required(fs *flag.FlagSet, vals ...string) error {
	for i := 0; i < len(vals); i += 2 {
		if vals[i+1] == "" {
			fmt.Fprintf(os.Stderr, "-%s is required\n", vals[i])
			fs.Usage()
			return flag.ErrHelp
		}
	}
	return nil
}

// board starts a live board and waits for its first snapshot. It stops
// when ctx is canceled.
func (a *app) board(ctx context.Context) (*dashboard.Board, error) {
	if err := a.session.Fresh(ctx); err != nil {
		return nil, err
	}
	b := dashboard.NewBoard(a.client, a.session, a.loc, a.log)
	go b.Run(ctx)

	wctx, cancel := context.WithTimeout(ctx, boardWait)
	defer cancel()
	if err := b.Wait(wctx); err != nil {
		return nil, fmt.Errorf("calendar feed: %w", err)
	}
	return b, nil
}

func (a *app) detail(ctx context.Context, id string) (*dashboard.Detail, error) {
	b, err := a.board(ctx)
	if err != nil {
		return nil, err
	}
	return b.Click(id)
}

func (a *app) line(e model.Event) string {
	mark := ""
	if e.Canceled() {
		mark = " [cancelado]"
	}
	return fmt.Sprintf("%s  %s  %s%s", e.ID, e.Start.In(a.loc).Format(timeLayout), e.Title, mark)
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", os.Getenv("AGENDA_PASSWORD"), "password (or AGENDA_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email", *email, "name", *name, "password", *password); err != nil {
		return err
	}
	id, err := a.session.SignUp(ctx, *email, *password, *name)
	if err != nil {
		return err
	}
	fmt.Printf("signed up as %s (%s)\n", id.Name, id.Role)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("AGENDA_PASSWORD"), "password (or AGENDA_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email", *email, "password", *password); err != nil {
		return err
	}
	id, err := a.session.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", id.Name, id.Role)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.SignOut(ctx); err != nil {
		a.log.Warn("server logout failed, local session cleared", zap.Error(err))
	}
	fmt.Println("signed out")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	id := a.session.Current()
	if !id.SignedIn() {
		return identity.ErrSignedOut
	}
	fmt.Printf("%s (%s) %s\n", id.Name, id.Role, id.UserID)
	return nil
}

// cmdProfile prints the profile, or updates the fields given as flags and
// keeps the rest as stored.
func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	phone := fs.String("phone", "", "phone")
	address := fs.String("address", "", "address")
	photo := fs.String("photo", "", "photo URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.session.Fresh(ctx); err != nil {
		return err
	}
	u, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	if fs.NFlag() > 0 {
		req := &rpc.UpdateProfileRequest{Name: u.Name, Phone: u.Phone, Address: u.Address, PhotoURL: u.PhotoURL}
		fs.Visit(func(fl *flag.Flag) {
			switch fl.Name {
			case "name":
				req.Name = *name
			case "phone":
				req.Phone = *phone
			case "address":
				req.Address = *address
			case "photo":
				req.PhotoURL = *photo
			}
		})
		if u, err = a.client.UpdateProfile(ctx, req); err != nil {
			return err
		}
	}
	fmt.Printf("%s <%s> (%s)\n", u.Name, u.Email, u.Role)
	for _, r := range [][2]string{{"Telefone", u.Phone}, {"Endereço", u.Address}, {"Foto", u.PhotoURL}} {
		if r[1] != "" {
			fmt.Printf("  %-16s %s\n", r[0]+":", r[1])
		}
	}
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	from := fs.String("from", "", "first day, "+dateLayout)
	to := fs.String("to", "", "last day, "+dateLayout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	var lo, hi time.Time
	var err error
	if *from != "" {
		if lo, err = time.ParseInLocation(dateLayout, *from, a.loc); err != nil {
			return err
		}
	}
	if *to != "" {
		if hi, err = time.ParseInLocation(dateLayout, *to, a.loc); err != nil {
			return err
		}
		hi = hi.AddDate(0, 0, 1)
	}
	if err := a.session.Fresh(ctx); err != nil {
		return err
	}
	events, err := a.client.ListEvents(ctx, lo, hi)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Println(a.line(e))
	}
	return nil
}

func cmdWatch(ctx context.Context, a *app, _ []string) error {
	if err := a.session.Fresh(ctx); err != nil {
		return err
	}
	for {
		ch, err := a.client.Subscribe(ctx)
		if err != nil {
			return err
		}
		view := feed.NewView()
		for c := range ch {
			view.Apply(c)
			switch c.Kind {
			case feed.KindSnapshot:
				for _, e := range view.Events() {
					fmt.Println("  " + a.line(e))
				}
				fmt.Printf("-- %d agendamentos --\n", view.Len())
			case feed.KindUpsert:
				fmt.Println("~ " + a.line(*c.Event))
			case feed.KindRemove:
				fmt.Println("- " + c.ID)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintln(os.Stderr, "feed interrupted, reconnecting")
		if err := a.session.Fresh(ctx); err != nil {
			return err
		}
	}
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d, err := a.detail(ctx, *id)
	if err != nil {
		return err
	}
	e := d.Event()
	fmt.Println(e.Title)
	for _, r := range d.Rows(a.loc) {
		fmt.Printf("  %-16s %s\n", r.Label+":", r.Value)
	}
	for _, s := range e.Services {
		fmt.Printf("  - %s\n", s.Name)
	}
	if e.Observations != "" {
		fmt.Printf("  %s\n", e.Observations)
	}
	fmt.Printf("ação disponível: %s\n", d.Toggle().Label())
	return nil
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	plate := fs.String("plate", "", "license plate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "plate", *plate); err != nil {
		return err
	}
	if err := a.session.Fresh(ctx); err != nil {
		return err
	}
	events, err := a.client.History(ctx, *plate)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("Nenhum registro encontrado para esta placa")
		return nil
	}
	for _, e := range events {
		fmt.Println(a.line(e))
		for _, s := range e.Services {
			fmt.Printf("    - %s\n", s.Name)
		}
	}
	return nil
}

func cmdNew(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	at := fs.String("at", "", "slot start, "+timeLayout)
	var ff formFlags
	ff.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "at", *at); err != nil {
		return err
	}
	start, err := parseTime(*at, a.loc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	b.SetMode(dashboard.Day)
	d := b.Select(start)
	if err := d.ChooseForm(); err != nil {
		return err
	}
	e, err := d.Submit(ctx, ff.apply(fs, model.EventForm{}))
	if err != nil {
		return err
	}
	fmt.Println("criado: " + a.line(*e))
	return nil
}

func cmdLink(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("link", flag.ContinueOnError)
	at := fs.String("at", "", "slot start, "+timeLayout)
	qr := fs.String("qr", "", "also write the link as a QR code PNG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "at", *at); err != nil {
		return err
	}
	start, err := parseTime(*at, a.loc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	b.SetMode(dashboard.Day)
	d := b.Select(start)
	if err := d.ChooseLink(ctx); err != nil {
		return fmt.Errorf("erro ao gerar link: %w", err)
	}
	fmt.Println(d.Link())

	if *qr != "" {
		png, err := ticket.LinkQR(d.Link(), 256)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*qr, png, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	var ff formFlags
	ff.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	det, err := a.detail(ctx, *id)
	if err != nil {
		return err
	}
	d := det.Edit()
	e, err := d.Submit(ctx, ff.apply(fs, d.Form()))
	if err != nil {
		return err
	}
	fmt.Println("atualizado: " + a.line(*e))
	return nil
}

func cmdMove(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	at := fs.String("at", "", "new start, "+timeLayout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id, "at", *at); err != nil {
		return err
	}
	start, err := parseTime(*at, a.loc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	if err := b.Drop(ctx, *id, &start); err != nil {
		return err
	}
	e, _ := b.View().Get(*id)
	fmt.Println("movido: " + a.line(e))
	return nil
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d, err := a.detail(ctx, *id)
	if err != nil {
		return err
	}
	if err := d.RequestCancel(); err != nil {
		return errors.New("agendamento já está cancelado")
	}
	if !*yes && !confirm(fmt.Sprintf("Cancelar o agendamento de %s? [s/N] ", d.Event().Title)) {
		d.AbortCancel()
		fmt.Println("nada foi alterado")
		return nil
	}
	if err := d.ConfirmCancel(ctx); err != nil {
		return err
	}
	fmt.Println("cancelado: " + a.line(d.Event()))
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "sim", "y", "yes":
		return true
	}
	return false
}

func cmdReactivate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("reactivate", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d, err := a.detail(ctx, *id)
	if err != nil {
		return err
	}
	if err := d.Reactivate(ctx); err != nil {
		if errors.Is(err, dashboard.ErrInvalidState) {
			return errors.New("agendamento não está cancelado")
		}
		return err
	}
	fmt.Println("reativado: " + a.line(d.Event()))
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}
	if err := a.session.Fresh(ctx); err != nil {
		return err
	}
	if err := a.client.DeleteEvent(ctx, *id); err != nil {
		return err
	}
	fmt.Println("removido: " + *id)
	return nil
}

func cmdPrint(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("print", flag.ContinueOnError)
	id := fs.String("id", "", "event id")
	out := fs.String("o", "", "output file (default agendamento-<id>.pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}
	if *out == "" {
		*out = "agendamento-" + *id + ".pdf"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d, err := a.detail(ctx, *id)
	if err != nil {
		return err
	}
	e := d.Event()

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Não foi possível abrir %s para impressão. Verifique as permissões da pasta ou use -o.\n", *out)
		return err
	}
	if err := ticket.PDF(f, ticket.New(&e, a.loc)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println(*out)
	return nil
}

// cmdFill answers a shareable booking link from the terminal, without an
// account. With no form flags it only shows the reserved slot.
func cmdFill(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("fill", flag.ContinueOnError)
	id := fs.String("id", "", "link id, the last part of the link URL")
	var ff formFlags
	ff.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}
	p, err := a.client.GetPending(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("horário: %s (%s)\n", p.Date.In(a.loc).Format(timeLayout), p.Status)
	if fs.NFlag() == 1 {
		return nil
	}
	e, err := a.client.SubmitPending(ctx, *id, ff.apply(fs, model.EventForm{}))
	if err != nil {
		return err
	}
	fmt.Println("Agendamento confirmado: " + a.line(*e))
	return nil
}
