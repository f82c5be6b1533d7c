package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "text/tabwriter"
    "time"

    "promkeeper/internal/config"
    "promkeeper/internal/database"
    "promkeeper/internal/retention"
)

// promkeeper-policy manages retention policies directly in the database,
// for provisioning before the server is up or when the API is unreachable.
// The server must not be running against the same database file while this
// tool holds it open.
func main() {
    configFile := flag.String("config", "config.yaml", "Configuration file path")
    list := flag.Bool("list", false, "List existing policies and exit")
    pattern := flag.String("pattern", "", "Metric name pattern (glob or regex)")
    days := flag.Float64("days", 0, "Retention period in days")
    description := flag.String("description", "", "Policy description")
    enabled := flag.Bool("enabled", true, "Whether the policy is enabled")
    flag.Parse()

    cfg, err := config.Load(*configFile)
    if err != nil {
        fatal("Failed to load config: %v", err)
    }

    store, err := database.NewBoltStore(cfg.Database.Path)
    if err != nil {
        fatal("Failed to open database: %v", err)
    }
    defer store.Close()

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    if *list {
        listPolicies(ctx, store)
        return
    }

    if *pattern == "" || *days == 0 {
        fmt.Fprintln(os.Stderr, "Usage: promkeeper-policy -pattern <pattern> -days <days> [-description <text>] [-enabled=false]")
        fmt.Fprintln(os.Stderr, "       promkeeper-policy -list")
        os.Exit(2)
    }

    policy := &database.RetentionPolicy{
        MetricNamePattern: *pattern,
        RetentionDays:     *days,
        Description:       *description,
        Enabled:           *enabled,
    }

    if err := retention.ValidatePolicy(policy); err != nil {
        fatal("Invalid policy: %v", err)
    }

    if err := store.CreatePolicy(ctx, policy); err != nil {
        fatal("Failed to create policy: %v", err)
    }

    fmt.Printf("Created policy %s: pattern=%q retention=%.4g days enabled=%t\n",
        policy.ID, policy.MetricNamePattern, policy.RetentionDays, policy.Enabled)
}

func listPolicies(ctx context.Context, store database.Store) {
    policies, err := store.GetPolicies(ctx, database.PolicyFilters{})
    if err != nil {
        fatal("Failed to list policies: %v", err)
    }

    w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
    fmt.Fprintln(w, "ID\tPATTERN\tDAYS\tENABLED\tLAST EXECUTED\tDESCRIPTION")
    for _, p := range policies {
        lastExecuted := "never"
        if p.LastExecuted != nil {
            lastExecuted = p.LastExecuted.Format(time.RFC3339)
        }
        fmt.Fprintf(w, "%s\t%s\t%.4g\t%t\t%s\t%s\n",
            p.ID, p.MetricNamePattern, p.RetentionDays, p.Enabled, lastExecuted, p.Description)
    }
    w.Flush()
}

func fatal(format string, args ...interface{}) {
    fmt.Fprintf(os.Stderr, format+"\n", args...)
    os.Exit(1)
}
