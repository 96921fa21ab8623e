package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/unitrack/unitrack/core"
	"github.com/unitrack/unitrack/core/catalog"
	"github.com/unitrack/unitrack/core/planner"
	"github.com/unitrack/unitrack/core/prediction"
	"github.com/unitrack/unitrack/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp      = errors.New("help provided")
	errNotLogged = errors.New("not logged in; run: portal login -user CODE")
)

type commandLine struct {
	log     core.Logger
	store   *session.Store
	api     core.BackendAPI
	predSvc *prediction.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  login -user CODE      - log into the portal (password prompted next)")
	fmt.Println("  logout                - drop the session and its caches")
	fmt.Println("  catalog               - list available courses with predicted grades")
	fmt.Println("  plan                  - interactive enrollment planner")
	fmt.Println("  resources [-course N] - list academic resources")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginUser := loginCmd.String("user", "", "The student code. The password will be prompted next.")

	resourcesCmd := flag.NewFlagSet("resources", flag.ExitOnError)
	resourcesCourse := resourcesCmd.String("course", "", "Show resources for a single course name.")
	resourcesEnrolled := resourcesCmd.Bool("enrolled", false, "Show resources for the confirmed enrollment.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginUser == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		return cli.login(ctx, *loginUser, string(pwd))
	case "logout":
		return cli.logout(ctx)
	case "catalog":
		return cli.showCatalog(ctx)
	case "plan":
		return cli.plan(ctx)
	case "resources":
		if err := resourcesCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.resources(ctx, *resourcesCourse, *resourcesEnrolled)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) login(ctx context.Context, user, pwd string) error {
	login, err := cli.api.Login(ctx, core.Credentials{CodPersona: user, Password: pwd})
	if err != nil {
		return err
	}
	if err := cli.store.SaveLogin(ctx, login); err != nil {
		return err
	}
	fmt.Printf("Welcome %s (%s)\n", login.Student().Name, login.CodPersona)

	seen, err := cli.store.OnboardingSeen(ctx, login.CodPersona)
	if err == nil && !seen {
		fmt.Println("Tip: use `portal plan` to build your schedule; conflicts are advisory and confirmable.")
		_ = cli.store.MarkOnboardingSeen(ctx, login.CodPersona)
	}
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	login, err := cli.store.Login(ctx)
	if err != nil {
		return err
	}
	if login == nil {
		return errNotLogged
	}
	return cli.store.Logout(ctx, login.CodPersona)
}

// loadSession rebuilds the catalog from the stored login and resolves
// predictions (cache-first).
func (cli *commandLine) loadSession(ctx context.Context) (*core.LoginData, *catalog.Catalog, string, error) {
	login, err := cli.store.Login(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	if login == nil {
		return nil, nil, "", errNotLogged
	}
	cat := catalog.Build(login, cli.log)
	period, _ := login.AcademicInfo["per_matricula"].(string)
	if err := cli.predSvc.LoadPredictions(ctx, login.CodPersona, period, cat); err != nil {
		cli.log.Warn("predictions unavailable", err)
	}
	return login, cat, period, nil
}

func (cli *commandLine) showCatalog(ctx context.Context) error {
	_, cat, _, err := cli.loadSession(ctx)
	if err != nil {
		return err
	}
	for _, c := range cat.Courses {
		fmt.Printf("%-8s %-40s %d cr  slots:%-3d  est:%s %s\n",
			c.Code, c.Name, c.Credits, c.Slots, planner.FormatGrade(c.EstimatedGrade), c.Risk)
		for _, sec := range c.Sections {
			fmt.Printf("    [%s] %s\n", sec.ID, sec.Name)
			for _, s := range sec.Sessions {
				fmt.Printf("        %-9s %s  %s\n", s.Day, planner.FormatEventRange(s.Start, s.End), s.Location)
			}
		}
	}
	return nil
}

func (cli *commandLine) plan(ctx context.Context) error {
	login, cat, period, err := cli.loadSession(ctx)
	if err != nil {
		return err
	}
	pl := planner.New(cat)

	fmt.Println("Commands: list | add CODE | confirm CODE | drop CODE | section CODE N | calendar | recommend | matricula | save | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("plan> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "list":
			cli.printSelection(pl)
		case "add":
			if len(fields) < 2 {
				continue
			}
			res, err := pl.Toggle(fields[1])
			switch {
			case err != nil:
				fmt.Println(err)
			case res.Removed:
				fmt.Println("removed", fields[1])
				cli.refreshMatricula(ctx, login.CodPersona, pl, period)
			case res.Added:
				fmt.Println("added", fields[1])
				cli.refreshMatricula(ctx, login.CodPersona, pl, period)
			default:
				// conflicts are advisory; adding needs explicit confirmation
				for _, c := range res.Conflicts {
					fmt.Printf("conflict with %s on %s at %s\n", c.Course.Code, c.Day, c.Time)
				}
				fmt.Printf("run `confirm %s` to add anyway\n", fields[1])
			}
		case "confirm":
			if len(fields) < 2 {
				continue
			}
			if err := pl.AddConfirmed(fields[1]); err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println("added", fields[1])
			cli.refreshMatricula(ctx, login.CodPersona, pl, period)
		case "drop":
			if len(fields) < 2 {
				continue
			}
			if res, err := pl.Toggle(fields[1]); err != nil {
				fmt.Println(err)
			} else if res.Removed {
				fmt.Println("removed", fields[1])
				cli.refreshMatricula(ctx, login.CodPersona, pl, period)
			}
		case "section":
			if len(fields) < 3 {
				continue
			}
			idx, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Println("section index must be a number")
				continue
			}
			if err := pl.ChangeSection(fields[1], idx); err != nil {
				fmt.Println(err)
			}
		case "calendar":
			cli.printCalendar(pl)
		case "recommend":
			cli.recommend(ctx, login.CodPersona, period, pl, cat)
		case "matricula":
			for code, nota := range cli.predSvc.Matricula() {
				fmt.Printf("%-8s %.2f\n", code, nota)
			}
		case "save":
			cli.saveEnrollment(ctx, login.CodPersona, pl)
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func (cli *commandLine) printSelection(pl *planner.Planner) {
	for _, c := range pl.Selected() {
		sec := c.CurrentSection()
		fmt.Printf("%-8s %-40s section:%s\n", c.Code, c.Name, sec.ID)
	}
	fmt.Printf("%d courses, %d credits\n", len(pl.Selected()), pl.TotalCredits())
}

func (cli *commandLine) printCalendar(pl *planner.Planner) {
	byDay := pl.EventsByDay()
	for _, day := range []catalog.Day{catalog.Monday, catalog.Tuesday, catalog.Wednesday, catalog.Thursday, catalog.Friday, catalog.Saturday} {
		events := byDay[day]
		if len(events) == 0 {
			continue
		}
		fmt.Println(day)
		for _, ev := range events {
			fmt.Printf("  %s  %s (%s)  est:%s\n",
				planner.FormatEventRange(ev.Start, ev.End), ev.Name, ev.SectionName, planner.FormatGrade(ev.Grade))
		}
	}
}

// refreshMatricula re-issues the batched matricula-level prediction after a
// selection change; on failure the prior in-memory map stays.
func (cli *commandLine) refreshMatricula(ctx context.Context, codPersona string, pl *planner.Planner, period string) {
	codes := pl.SelectedCodes()
	if len(codes) == 0 {
		return
	}
	if err := cli.predSvc.RefreshMatricula(ctx, codPersona, codes, period); err != nil {
		cli.log.Warn("matricula prediction failed; keeping previous values", err)
	}
}

func (cli *commandLine) recommend(ctx context.Context, codPersona, period string, pl *planner.Planner, cat *catalog.Catalog) {
	maxTime := core.Conf.GetInt("maxRecommendationTime")
	res, err := cli.predSvc.BestSchedule(ctx, codPersona, period, cat.Codes(), maxTime)
	if err != nil {
		fmt.Println(err) // stale-cache results still arrive with the notice attached
	}
	if res == nil || res.MejorRecomendacion == nil {
		return
	}
	best := res.MejorRecomendacion
	fmt.Printf("best schedule (rank %d, %.1f weekly hours): %s\n", best.Rank, best.TotalHoras, strings.Join(best.Cursos, ", "))
	if err := pl.ApplyPlan(best); err != nil {
		fmt.Println("could not apply recommendation:", err)
		return
	}
	cli.printSelection(pl)
	cli.refreshMatricula(ctx, codPersona, pl, period)
}

func (cli *commandLine) saveEnrollment(ctx context.Context, codPersona string, pl *planner.Planner) {
	snap := session.EnrollmentSnapshot{TotalCredits: pl.TotalCredits()}
	for _, c := range pl.Selected() {
		snap.Courses = append(snap.Courses, core.SectionBinding{CodCurso: c.Code, Seccion: c.CurrentSection().ID})
	}
	if err := cli.store.SaveEnrollment(ctx, codPersona, snap); err != nil {
		fmt.Println("could not save enrollment:", err)
		return
	}
	fmt.Println("enrollment confirmed")
}

func (cli *commandLine) resources(ctx context.Context, course string, enrolled bool) error {
	if course != "" {
		res, err := cli.api.CourseResources(ctx, course)
		if err != nil || res == nil {
			cli.log.Warn("course resources unavailable", err)
			return nil
		}
		fmt.Println(res.Descripcion)
		for _, r := range res.Recursos {
			fmt.Printf("  %-10s %-30s %s\n", r.Tipo, r.Nombre, r.URL)
		}
		return nil
	}

	if enrolled {
		login, err := cli.store.Login(ctx)
		if err != nil {
			return err
		}
		if login == nil {
			return errNotLogged
		}
		snap, err := cli.store.Enrollment(ctx, login.CodPersona)
		if err != nil || snap == nil {
			fmt.Println("no confirmed enrollment")
			return nil
		}
		cat := catalog.Build(login, cli.log)
		refs := make([]core.CourseRef, 0, len(snap.Courses))
		for _, b := range snap.Courses {
			if c, ok := cat.Get(b.CodCurso); ok {
				refs = append(refs, core.CourseRef{Code: c.Code, Name: c.Name})
			}
		}
		byCourse, err := cli.api.EnrolledResources(ctx, refs)
		if err != nil || byCourse == nil {
			cli.log.Warn("enrolled resources unavailable", err)
			return nil
		}
		for code, res := range byCourse {
			fmt.Println(code, "-", res.Descripcion)
			for _, r := range res.Recursos {
				fmt.Printf("  %-10s %-30s %s\n", r.Tipo, r.Nombre, r.URL)
			}
		}
		return nil
	}

	all, err := cli.api.AllResources(ctx)
	if err != nil {
		cli.log.Warn("resources unavailable", err)
	}
	for _, r := range all {
		fmt.Printf("%-10s %-30s %s\n", r.Tipo, r.Nombre, r.URL)
	}
	return nil
}
