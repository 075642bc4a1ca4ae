package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	paymenthttp "github.com/dmehra2102/payment-engine/internal/payment/infrastructure/http"
)

func accountCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account [id]",
		Short: "Create or update a payer/recipient account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			phone, _ := cmd.Flags().GetString("phone")
			p := domain.Payer{ID: args[0], Name: name, Email: email, Phone: phone}
			if err := p.Validate(); err != nil {
				return err
			}
			if err := rt.connect(cmd.Context()); err != nil {
				return err
			}
			if err := rt.repo.UpsertAccount(cmd.Context(), p); err != nil {
				return err
			}
			balance, err := rt.repo.WalletBalance(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			fmt.Printf("account %s saved, wallet %s\n", p.ID, domain.FormatMinor(balance))
			return nil
		},
	}
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("email", "", "Contact email")
	cmd.Flags().String("phone", "", "Contact phone")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func tokenCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			tok, err := paymenthttp.NewAuthenticator(rt.cfg.JWTSecret).Issue(args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().String("role", "", "Role claim (admin grants refunds and stats on any account)")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}
