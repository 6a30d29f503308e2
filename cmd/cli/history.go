package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retromint/v1/core/history"
	"github.com/retromint/v1/pkg/tools/format"
)

var historyFlags struct {
	Address string
}

// historyCmd 本地铸造历史查询
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看本地铸造历史",
	Long:  "列出本地记录的铸造结果,可按地址过滤。",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activeProfile()
		if err != nil {
			return fmt.Errorf("获取Profile: %w", err)
		}
		logger := newUILogger(profile)

		store, err := history.Open(profile.DataPath, logger)
		if err != nil {
			return fmt.Errorf("打开历史存储: %w", err)
		}
		defer store.Close()

		records, err := store.List(historyFlags.Address)
		if err != nil {
			return err
		}

		rows := make([]map[string]interface{}, 0, len(records))
		for _, r := range records {
			rows = append(rows, map[string]interface{}{
				"token_id":  r.TokenID,
				"tx_hash":   format.FormatHashShort(r.TxHash, 10, 8),
				"owner":     format.FormatAddress(r.Owner, 8, 6),
				"token_uri": r.TokenURI,
				"minted_at": r.MintedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return formatter.PrintRows([]string{"token_id", "tx_hash", "owner", "token_uri", "minted_at"}, rows)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFlags.Address, "address", "a", "", "按拥有者地址过滤")
}
