package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jorge5452/Melodify-Deezer/config"
	"github.com/Jorge5452/Melodify-Deezer/db"
	"github.com/Jorge5452/Melodify-Deezer/repository"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Inspect and maintain the vault file",
}

var vaultStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault entry counts",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		fps := store.Fingerprints()

		var tracks, albums, playlists int
		for _, fp := range fps {
			switch {
			case strings.HasPrefix(fp, "album_"):
				albums++
			case strings.HasPrefix(fp, "playlist_"):
				playlists++
			default:
				tracks++
			}
		}

		fmt.Printf("Entries:   %d\n", len(fps))
		fmt.Printf("Tracks:    %d\n", tracks)
		fmt.Printf("Albums:    %d\n", albums)
		fmt.Printf("Playlists: %d\n", playlists)

		// Bookkeeping rows, when MySQL is configured.
		cfg := config.Load()
		if cfg.DBEnabled() {
			if err := db.ConnectGormDB(cfg); err != nil {
				log.Printf("MySQL unavailable, skipping published count: %v", err)
				return
			}
			defer db.CloseGormDB()
			n, err := repository.NewPublishedTrackRepository().Count(cmd.Context())
			if err != nil {
				log.Printf("failed to count published tracks: %v", err)
				return
			}
			fmt.Printf("Published: %d\n", n)
		}
	},
}

var vaultGetCmd = &cobra.Command{
	Use:   "get <fingerprint>",
	Short: "Print the artifact refs stored for a fingerprint",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		val, ok := store.Get(args[0])
		if !ok {
			log.Fatalf("no entry for %s", args[0])
		}
		for _, ref := range val.AsList() {
			fmt.Println(ref)
		}

		// Bookkeeping row, when MySQL is configured.
		cfg := config.Load()
		if cfg.DBEnabled() {
			if err := db.ConnectGormDB(cfg); err != nil {
				log.Printf("MySQL unavailable, skipping bookkeeping lookup: %v", err)
				return
			}
			defer db.CloseGormDB()
			track, err := repository.NewPublishedTrackRepository().GetByFingerprint(cmd.Context(), args[0])
			if err != nil {
				log.Printf("bookkeeping lookup failed: %v", err)
				return
			}
			if track != nil {
				fmt.Printf("%s - %s (published %s)\n", track.Artist, track.Title,
					track.PublishedAt.Format("2006-01-02"))
			}
		}
	},
}

var vaultDelCmd = &cobra.Command{
	Use:   "del <fingerprint>",
	Short: "Delete a vault entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		if _, ok := store.Get(args[0]); !ok {
			log.Fatalf("no entry for %s", args[0])
		}
		if err := store.Delete(args[0]); err != nil {
			log.Fatalf("failed to delete %s: %v", args[0], err)
		}
		fmt.Printf("Deleted %s\n", args[0])
	},
}

func openStore() *vault.Store {
	cfg := config.Load()
	store := vault.New(cfg.VaultPath, cfg.VaultBackupPath)
	store.SetMaxEntries(cfg.VaultMaxEntries)
	return store
}

func init() {
	vaultCmd.AddCommand(vaultStatsCmd, vaultGetCmd, vaultDelCmd)
	rootCmd.AddCommand(vaultCmd)
}
