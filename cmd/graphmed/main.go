// Command graphmed builds and queries the stroke medicine knowledge
// graph.
//
//	graphmed create -data ./data [-reset]   ingest the corpus
//	graphmed process                        dedupe, communities, summaries
//	graphmed picture [-label 药物]          attach Wikipedia images
//	graphmed query                          interactive question REPL
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/graphmed/graphmed"
	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/model"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelInfo},
	}))

	config, err := helper.NewConfiguration()
	if err != nil {
		logger.Error("Configuration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	g, err := graphmed.New(ctx, config, model.DefaultOptions(), model.DefaultQueryOptions(), logger)
	if err != nil {
		logger.Error("Startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer g.Close(ctx)

	switch os.Args[1] {
	case "create":
		err = runCreate(ctx, g, os.Args[2:])
	case "process":
		err = g.Process(ctx)
	case "picture":
		err = runPicture(ctx, g, os.Args[2:], logger)
	case "query":
		err = runQuery(ctx, g, logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: graphmed <create|process|picture|query> [flags]")
}

func runCreate(ctx context.Context, g *graphmed.GraphMed, args []string) error {
	flags := flag.NewFlagSet("create", flag.ExitOnError)
	data := flags.String("data", "./data", "directory with UTF-8 .txt corpus files")
	reset := flags.Bool("reset", false, "wipe the graph before ingesting")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *reset {
		if err := g.Reset(ctx); err != nil {
			return err
		}
	}

	return g.IngestDirectory(ctx, *data)
}

func runPicture(ctx context.Context, g *graphmed.GraphMed, args []string, logger *slog.Logger) error {
	flags := flag.NewFlagSet("picture", flag.ExitOnError)
	label := flags.String("label", "", "entity type label to process, empty for all")
	if err := flags.Parse(args); err != nil {
		return err
	}

	labels := []string{*label}
	if *label == "" {
		all, err := g.PictureLabels(ctx)
		if err != nil {
			return err
		}
		labels = all
	}

	for _, label := range labels {
		stats, err := g.AttachPictures(ctx, label)
		if err != nil {
			return err
		}
		logger.Info("Attached pictures",
			slog.String("label", label),
			slog.Int("total", stats.Total),
			slog.Int("success", stats.Success),
			slog.Int("notFound", stats.NotFound),
			slog.Int("failed", stats.Failed))
	}

	return nil
}

func runQuery(ctx context.Context, g *graphmed.GraphMed, logger *slog.Logger) error {
	session := uuid.New().String()
	logger.Info("Query session started", slog.String("session", session))

	fmt.Println("输入问题（local: 前缀使用局部检索，默认全局检索）。")
	fmt.Println("使用 :trace <id> 查看引用来源，:quit 退出。")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q":
			return nil
		case strings.HasPrefix(line, ":trace "):
			id := strings.TrimSpace(strings.TrimPrefix(line, ":trace "))
			record, err := g.TraceSource(ctx, id)
			if err != nil {
				fmt.Printf("查找失败: %v\n", err)
				continue
			}
			if record.Kind == "chunk" {
				fmt.Printf("[%v %v #%v]\n%v\n", record.Kind, record.FileName, record.Position, record.Text)
			} else {
				fmt.Printf("[%v %v]\n%v\n", record.Kind, record.ID, record.Text)
			}
		case strings.HasPrefix(line, "local:"):
			question := strings.TrimSpace(strings.TrimPrefix(line, "local:"))
			answer, err := g.LocalSearch(ctx, question)
			if err != nil {
				fmt.Printf("检索失败: %v\n", err)
				continue
			}
			fmt.Println(answer)
		default:
			answer, err := g.GlobalSearch(ctx, line)
			if err != nil {
				fmt.Printf("检索失败: %v\n", err)
				continue
			}
			fmt.Println(answer)
		}
	}
}
