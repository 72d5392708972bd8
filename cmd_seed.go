package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"morvo/internal/store"
)

var (
	seedUser     string
	seedName     string
	seedBusiness string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo profile with campaigns, analytics and memories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore(configPath)
		if err != nil {
			return err
		}
		defer st.Close()
		return seedDemo(context.Background(), st, seedUser, seedName, seedBusiness)
	},
}

func seedDemo(ctx context.Context, st *store.Store, userID, name, business string) error {
	if err := st.SaveProfile(ctx, store.Profile{ID: userID, FullName: name, BusinessType: business}); err != nil {
		return err
	}

	campaigns := []store.Campaign{
		{UserID: userID, Name: "إطلاق رمضان", Budget: 15000},
		{UserID: userID, Name: "العودة للمدارس", Budget: 8000},
		{UserID: userID, Name: "حملة الصيف", Budget: 5000},
	}
	for _, c := range campaigns {
		if _, err := st.SaveCampaign(ctx, c); err != nil {
			return err
		}
	}

	metrics := map[string]float64{"website_visits": 12450, "conversion_rate": 2.8, "roi": 3.4}
	for metric, value := range metrics {
		if _, err := st.SaveAnalytics(ctx, store.Analytics{UserID: userID, Metric: metric, Value: value}); err != nil {
			return err
		}
	}

	memories := []struct {
		kind       string
		content    any
		importance float64
	}{
		{"preference", map[string]any{"tone": "ودي", "channels": []string{"instagram", "snapchat"}}, 8},
		{"goal", map[string]any{"target": "زيادة المبيعات", "quarter": "Q3"}, 6},
		{"audience", map[string]any{"age": "18-34", "region": "الرياض"}, 4},
	}
	for _, m := range memories {
		raw, err := json.Marshal(m.content)
		if err != nil {
			return err
		}
		if _, err := st.SaveMemory(ctx, store.Memory{UserID: userID, Type: m.kind, Content: raw, Importance: m.importance}); err != nil {
			return err
		}
	}

	fmt.Printf("seeded %s: %d campaigns, %d analytics, %d memories\n", userID, len(campaigns), len(metrics), len(memories))
	return nil
}

func init() {
	seedCmd.Flags().StringVarP(&seedUser, "user", "u", "console:local", "User id to seed")
	seedCmd.Flags().StringVar(&seedName, "name", "متجر الريم", "Profile full name")
	seedCmd.Flags().StringVar(&seedBusiness, "business-type", "ecommerce", "Profile business type")
	rootCmd.AddCommand(seedCmd)
}
