// Command authcore-alerts prints the security alerts recorded in Redis over
// the retention window, newest first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bikebill/authcore/internal/config"
	"github.com/bikebill/authcore/internal/stores"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		limit      = flag.Int("limit", 50, "maximum number of alerts to print")
		asJSON     = flag.Bool("json", false, "print one JSON object per line")
		timeout    = flag.Duration("timeout", 10*time.Second, "redis timeout")
	)
	flag.Parse()

	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "limit must be > 0")
		os.Exit(2)
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{settings.Redis.Addr},
		Password: settings.Redis.Password,
		DB:       settings.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	alerts, err := stores.NewAlertStore(client, "").Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list alerts: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		err = writeJSON(os.Stdout, alerts)
	} else {
		err = writeTable(os.Stdout, alerts)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, alerts []stores.Alert) error {
	enc := json.NewEncoder(w)
	for _, a := range alerts {
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, alerts []stores.Alert) error {
	if len(alerts) == 0 {
		_, err := fmt.Fprintln(w, "no alerts in the last 7 days")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tKIND\tIP\tIDENTITY\tATTEMPTS")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			a.CreatedAt.UTC().Format(time.RFC3339), a.Kind, a.IP, a.Identity, a.Attempts)
	}
	return tw.Flush()
}
