// Package main is notegraphd's entrypoint: a cobra root command wiring
// config, storage, the LLM/embedding clients, every domain component
// (C1-C10), and the HTTP server together. Grounded on predicato's
// cmd/predicato/{root,server}.go split between a root command (global
// flags, config init) and a serve command (component wiring, graceful
// shutdown).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "notegraphd",
	Short: "notegraphd: a personal knowledge graph for free-form notes",
	Long: `notegraphd ingests free-form markdown notes, extracts episodic and
prospective metadata with a local or OpenAI-compatible LLM, embeds and
links notes into a graph, detects communities, and answers questions by
retrieving and synthesizing across the graph.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("notegraphd")
	}
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
