package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Jorge5452/Melodify-Deezer/config"
	"github.com/Jorge5452/Melodify-Deezer/storage"
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Test the MinIO connection",
	Long:  `Connects to the configured MinIO endpoint and uploads, reads and removes a probe object.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if !cfg.MinioEnabled() {
			log.Fatal("MINIO_ENDPOINT is not set")
		}
		fmt.Printf("MinIO: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("failed to initialize MinIO: %v", err)
		}
		fmt.Println("Connected.")

		if err := storage.TestMinio(cfg); err != nil {
			log.Fatalf("MinIO round trip failed: %v", err)
		}
		fmt.Println("Round trip OK.")
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
}
