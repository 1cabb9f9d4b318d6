package main

import (
	"context"
	"flag"
	"fmt"

	"referral-earnings-go/internal/common"
	"referral-earnings-go/internal/config"

	"go.uber.org/zap"
)

func printTree(nodes []common.SeedAccount, indent string) {
	for i, node := range nodes {
		isLast := i == len(nodes)-1
		fmt.Printf("%s%s%s <%s>\n", indent, common.BoxPrefix(isLast), node.Name, node.Email)
		printTree(node.Referrals, indent+common.BoxDetailPrefix(isLast))
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	fileFlag := flag.String("file", "referrals.yaml", "Referral tree to seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Loading referral tree", zap.String("file", *fileFlag))
	roots, err := common.LoadReferralTree(*fileFlag)
	if err != nil {
		zap.L().Fatal("Failed to load referral tree", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	created, err := common.SeedAccounts(ctx, services.Ledger, services.Store, roots)
	if err != nil {
		zap.L().Fatal("Seeding stopped", zap.Int("created", created), zap.Error(err))
	}

	common.PrintHeader("REFERRAL TREE", common.DefaultWidth)
	printTree(roots, "")
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d accounts created", created), common.DefaultWidth)

	zap.L().Info("Seeding completed", zap.Int("created", created))
}
