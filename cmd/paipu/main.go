package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pingcap/errors"
	"github.com/urfave/cli"
	"golang.org/x/time/rate"

	majsoul "github.com/Sehouz/majsoul-match-stats"
	"github.com/Sehouz/majsoul-match-stats/internal/batch"
	"github.com/Sehouz/majsoul-match-stats/internal/creds"
	"github.com/Sehouz/majsoul-match-stats/internal/stats"
)

func main() {
	app := cli.NewApp()
	app.Name = "paipu"
	app.Usage = "download and analyze Majsoul game records"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "credentials,c",
			Usage: "path to the credentials file",
			Value: creds.DefaultPath(),
		},
		cli.StringFlag{
			Name:  "server,s",
			Usage: "override the region selector (cn/jp/en)",
		},
		cli.StringFlag{
			Name:  "out,o",
			Usage: "output directory for downloaded records",
			Value: "output",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "list",
			Usage: "list recent game records",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "count,n",
					Usage: "number of records to list",
					Value: 10,
				},
			},
			Action: runList,
		},
		{
			Name:      "download",
			Usage:     "download one or more records by uuid",
			ArgsUsage: "<uuid>...",
			Action:    runDownload,
		},
		{
			Name:      "batch",
			Usage:     "download every record listed in a CSV file",
			ArgsUsage: "<csv-file>",
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "delay",
					Usage: "seconds between requests",
					Value: 1.0,
				},
				cli.BoolFlag{
					Name:  "skip-existing",
					Usage: "skip records already downloaded",
				},
			},
			Action: runBatch,
		},
		{
			Name:  "stats",
			Usage: "aggregate per-player statistics over downloaded records",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "csv",
					Usage: "roster CSV file",
				},
				cli.StringFlag{
					Name:  "result",
					Usage: "path of the statistics CSV to write",
					Value: "player_stats.csv",
				},
			},
			Action: runStats,
		},
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

// newClient loads the credential artifact and builds a connected, logged-in
// client.
func newClient(ctx context.Context, args *cli.Context) (*majsoul.Client, error) {
	cred, err := creds.Load(args.GlobalString("credentials"))
	if err != nil {
		return nil, errors.Trace(err)
	}

	server := cred.Server
	if override := args.GlobalString("server"); override != "" {
		server = override
	}

	client := majsoul.NewClient(server, cred.AccessToken)
	if err := client.Connect(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := client.Login(ctx); err != nil {
		client.Close()
		return nil, errors.Trace(err)
	}
	return client, nil
}

func runList(args *cli.Context) error {
	ctx := context.Background()
	client, err := newClient(ctx, args)
	if err != nil {
		return errors.Trace(err)
	}
	defer client.Close()

	result, err := client.FetchRecordList(ctx, 0, args.Int("count"))
	if err != nil {
		return errors.Trace(err)
	}

	list, _ := result.Get("record_list")
	records, _ := list.AsArray()
	if len(records) == 0 {
		fmt.Println("no records found")
		return nil
	}

	fmt.Printf("%-3s %-40s %-20s\n", "#", "UUID", "Time")
	for i, rec := range records {
		uuid, _ := rec.Get("uuid")
		start, _ := rec.Get("start_time")
		when := time.Unix(start.IntOr(0), 0).Format("2006-01-02 15:04")
		fmt.Printf("%-3d %-40s %-20s\n", i+1, uuid.StrOr("N/A"), when)
	}
	return nil
}

func runDownload(args *cli.Context) error {
	if args.NArg() == 0 {
		return errors.Errorf("download requires at least one record uuid")
	}

	ctx := context.Background()
	client, err := newClient(ctx, args)
	if err != nil {
		return errors.Trace(err)
	}
	defer client.Close()

	outDir := args.GlobalString("out")
	for _, id := range args.Args() {
		if _, err := client.DownloadRecord(ctx, id, outDir); err != nil {
			return errors.Annotatef(err, "download %s", id)
		}
	}
	return nil
}

func runBatch(args *cli.Context) error {
	if args.NArg() != 1 {
		return errors.Errorf("batch requires exactly one CSV file")
	}

	ids, err := batch.LoadIDs(args.Args().First())
	if err != nil {
		return errors.Trace(err)
	}
	if len(ids) == 0 {
		return errors.Errorf("no record ids found in %s", args.Args().First())
	}

	ctx := context.Background()
	client, err := newClient(ctx, args)
	if err != nil {
		return errors.Trace(err)
	}
	defer client.Close()

	outDir := args.GlobalString("out")
	delay := time.Duration(args.Float64("delay") * float64(time.Second))
	d := &batch.Downloader{
		Fetch: func(ctx context.Context, id string) error {
			_, err := client.DownloadRecord(ctx, id, outDir)
			return err
		},
		OutDir:       outDir,
		Limiter:      rate.NewLimiter(rate.Every(delay), 1),
		SkipExisting: args.Bool("skip-existing"),
	}

	rep, err := d.Run(ctx, ids)
	if err != nil {
		return errors.Trace(err)
	}

	fmt.Printf("done: %d succeeded, %d skipped, %d failed\n",
		rep.Succeeded, rep.Skipped, rep.Failed)
	for _, id := range rep.FailedIDs {
		fmt.Printf("  failed: %s\n", id)
	}
	return nil
}

func runStats(args *cli.Context) error {
	rosterPath := args.String("csv")
	if rosterPath == "" {
		return errors.Errorf("stats requires --csv")
	}

	players, err := stats.Run(rosterPath, args.GlobalString("out"))
	if err != nil {
		return errors.Trace(err)
	}

	if err := stats.WriteTable(os.Stdout, players); err != nil {
		return errors.Trace(err)
	}

	resultPath := args.String("result")
	f, err := os.Create(resultPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	if err := stats.WriteCSV(f, players); err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("results saved to %s\n", resultPath)
	return nil
}
