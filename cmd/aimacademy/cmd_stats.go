package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/progression"
)

// cmdStats shows a player's level and XP pools
func cmdStats(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy stats <player>")
	}
	if err := requireDaemon(); err != nil {
		return err
	}

	var stats progression.UserStats
	if err := getJSON("/v1/players/"+args[0]+"/stats", &stats); err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Printf("%s - Level %d %s\n", args[0], stats.Level, stats.LevelTitle)
	fmt.Println("==================")
	fmt.Printf("Total XP: %d\n", stats.TotalXP)
	fmt.Printf("Progress: %s %d/%d XP\n",
		renderProgressBar(stats.ProgressToNextLevel/100, 20), stats.XPForCurrentLevel, stats.XPForNextLevel)

	if len(stats.Pools) > 0 {
		pools := make([]string, 0, len(stats.Pools))
		for name := range stats.Pools {
			pools = append(pools, name)
		}
		sort.Strings(pools)

		fmt.Println("\nXP by Source")
		fmt.Println("------------")
		for _, name := range pools {
			fmt.Printf("%-16s %6d\n", name, stats.Pools[name])
		}
	}
	return nil
}

// cmdBadges shows badge progress
func cmdBadges(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy badges <player>")
	}
	if err := requireDaemon(); err != nil {
		return err
	}

	var resp struct {
		Badges []domain.BadgeView `json:"badges"`
	}
	if err := getJSON("/v1/players/"+args[0]+"/badges", &resp); err != nil {
		return fmt.Errorf("get badges: %w", err)
	}

	earned := 0
	for _, b := range resp.Badges {
		if b.Earned {
			earned++
		}
	}
	fmt.Printf("Badges (%d/%d)\n", earned, len(resp.Badges))
	fmt.Println("=============")

	for _, b := range resp.Badges {
		switch {
		case b.Earned && b.EarnedAt != nil:
			fmt.Printf("🏅 %-24s earned %s\n", b.Name, b.EarnedAt.Format("2006-01-02"))
		case b.Earned:
			fmt.Printf("🏅 %s\n", b.Name)
		case b.Progress != nil && b.Progress.Target > 0:
			ratio := float64(b.Progress.Current) / float64(b.Progress.Target)
			fmt.Printf("   %-24s %s %d/%d\n", b.Name, renderProgressBar(ratio, 10), b.Progress.Current, b.Progress.Target)
		default:
			fmt.Printf("   %-24s %s\n", b.Name, b.Requirement)
		}
	}
	return nil
}

// cmdHistory shows recent XP credits
func cmdHistory(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy history <player> [limit]")
	}
	if err := requireDaemon(); err != nil {
		return err
	}

	limit := 20
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("limit must be a non-negative integer: %q", args[1])
		}
		limit = n
	}

	var resp struct {
		Credits []domain.XPCredit `json:"credits"`
	}
	if err := getJSON(fmt.Sprintf("/v1/players/%s/history?limit=%d", args[0], limit), &resp); err != nil {
		return fmt.Errorf("get history: %w", err)
	}

	if len(resp.Credits) == 0 {
		fmt.Println("No XP earned yet. Start practicing!")
		return nil
	}
	for _, c := range resp.Credits {
		fmt.Printf("%s  %+5d  %-14s %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.Amount, c.Pool, c.Reason)
	}
	return nil
}
