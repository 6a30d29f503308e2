package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/retromint/v1/pkg/tools/format"
)

var statusFlags struct {
	Address string
}

// statusCmd 链上状态查询
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查询链上状态",
	Long:  "查询节点链ID、合约地址与当前铸造费用;指定 --address 时同时查询该地址是否已铸造。",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activeProfile()
		if err != nil {
			return fmt.Errorf("获取Profile: %w", err)
		}
		logger := newUILogger(profile)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(profile.Timeout))
		defer cancel()

		client, chainSvc, err := dialChainService(profile, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("查询链ID: %w", err)
		}

		fee, err := chainSvc.MintFee(ctx)
		if err != nil {
			return fmt.Errorf("查询铸造费用: %w", err)
		}

		result := map[string]interface{}{
			"profile":      profile.Name,
			"rpc_endpoint": profile.RPCEndpoint,
			"chain_id":     chainID.Uint64(),
			"contract":     chainSvc.Address().Hex(),
			"mint_fee_eth": format.FormatWei(fee),
		}

		if statusFlags.Address != "" {
			if !common.IsHexAddress(statusFlags.Address) {
				return fmt.Errorf("无效地址: %s", statusFlags.Address)
			}
			if !chainSvc.SupportsMintCheck() {
				result["has_minted"] = "合约不支持查询"
			} else {
				minted, err := chainSvc.HasMinted(ctx, common.HexToAddress(statusFlags.Address))
				if err != nil {
					return fmt.Errorf("查询铸造状态: %w", err)
				}
				result["has_minted"] = minted
			}
		}

		return formatter.Print(result)
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusFlags.Address, "address", "a", "", "查询该地址是否已铸造")
}
