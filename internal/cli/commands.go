package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agriai/agriai/internal/advisor"
	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/app"
)

func recommendCommand(st *state) *cobra.Command {
	var (
		soil, season, zone string
		interactive        bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend crops for a soil type, season and climate zone",
		Long: `Recommend crops for the selected conditions.

With --interactive, selector changes are read from stdin one per line
("soil clay", "season winter", "zone arid", "refresh") and each change
prints the refreshed recommendations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selectors := advisor.Selectors{
				Soil:   agronomy.SoilType(soil),
				Season: agronomy.Season(season),
				Zone:   agronomy.ClimateZone(zone),
			}
			if interactive {
				return runRecommendSession(cmd, st, selectors)
			}
			req := agronomy.NewRecommendationRequest(selectors.Soil, selectors.Season, selectors.Zone)
			set, err := st.backend.Advisor.Recommend(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), set)
		},
	}
	cmd.Flags().StringVar(&soil, "soil", string(agronomy.SoilLoamy), "Soil type: loamy, clay, sandy, silt")
	cmd.Flags().StringVar(&season, "season", string(agronomy.SeasonSummer), "Season: spring, summer, monsoon, winter")
	cmd.Flags().StringVar(&zone, "zone", string(agronomy.ClimateTemperate), "Climate zone: tropical, temperate, arid, mediterranean")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read selector changes from stdin")
	return cmd
}

func runRecommendSession(cmd *cobra.Command, st *state, initial advisor.Selectors) error {
	ctx := cmd.Context()
	session := advisor.NewSession(st.backend.Advisor, initial)
	out := cmd.OutOrStdout()

	set, err := session.Refresh(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(out, set); err != nil {
		return err
	}

	scanner := bufio.NewScanner(st.opts.Stdin)
	for scanner.Scan() {
		field, value, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		value = strings.TrimSpace(value)
		switch field {
		case "":
			continue
		case "soil":
			set, err = session.SetSoilType(ctx, agronomy.SoilType(value))
		case "season":
			set, err = session.SetSeason(ctx, agronomy.Season(value))
		case "zone":
			set, err = session.SetClimateZone(ctx, agronomy.ClimateZone(value))
		case "refresh":
			set, err = session.Refresh(ctx)
		case "quit", "exit":
			return nil
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "unknown command %q\n", field)
			continue
		}
		if errors.Is(err, advisor.ErrStale) {
			continue
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		if err := printJSON(out, set); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func pestCommand(st *state) *cobra.Command {
	var crop string
	cmd := &cobra.Command{
		Use:   "pest [image]",
		Short: "Identify pests in a crop photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
			if len(image) == 0 {
				return fmt.Errorf("%w: image file is empty", agronomy.ErrInvalidInput)
			}
			return printJSON(cmd.OutOrStdout(), st.backend.Advisor.AnalyzePest(cmd.Context(), image, crop))
		},
	}
	cmd.Flags().StringVar(&crop, "crop", "", "Crop shown in the photo")
	return cmd
}

func chatCommand(st *state) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the farming assistant a question",
		Args: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive {
				reply, err := st.backend.Advisor.Chat(cmd.Context(), nil, strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), reply.Reply)
				return err
			}
			return runChatSession(cmd, st)
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Chat over stdin, keeping the transcript")
	return cmd
}

func runChatSession(cmd *cobra.Command, st *state) error {
	var history []agronomy.Turn
	scanner := bufio.NewScanner(st.opts.Stdin)
	for scanner.Scan() {
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		reply, err := st.backend.Advisor.Chat(cmd.Context(), history, message)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Reply)
		history = append(history,
			agronomy.Turn{Role: agronomy.RoleUser, Text: message},
			agronomy.Turn{Role: agronomy.RoleAssistant, Text: reply.Reply},
		)
	}
	return scanner.Err()
}

func yieldCommand(st *state) *cobra.Command {
	var (
		file     string
		features agronomy.YieldFeatures
	)
	cmd := &cobra.Command{
		Use:   "yield",
		Short: "Predict crop yield from field features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading features: %w", err)
				}
				if err := json.Unmarshal(data, &features); err != nil {
					return fmt.Errorf("%w: decoding features: %v", agronomy.ErrInvalidInput, err)
				}
			}
			result, err := st.backend.Advisor.PredictYield(cmd.Context(), features)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON file with the feature record; replaces the flags")
	f.StringVar(&features.CropType, "crop", "", "Crop type")
	f.Float64Var(&features.SoilPH, "ph", agronomy.DefaultSoilPH, "Soil pH")
	f.Float64Var(&features.SoilMoisture, "moisture", agronomy.DefaultMoisture, "Soil moisture percent")
	f.Float64Var(&features.Temperature, "temperature", agronomy.DefaultTemperature, "Mean temperature in °C")
	f.Float64Var(&features.Humidity, "humidity", agronomy.DefaultHumidity, "Relative humidity percent")
	f.Float64Var(&features.Rainfall, "rainfall", agronomy.DefaultRainfall, "Rainfall in mm")
	f.Float64Var(&features.FertilizerUsage, "fertilizer", 0, "Fertilizer usage in kg/ha")
	f.Float64Var(&features.AreaHectares, "area", agronomy.DefaultFarmSize, "Planted area in hectares")
	f.StringVar(&features.PlantingDate, "planted", "", "Planting date (YYYY-MM-DD)")
	f.StringVar(&features.GrowthStage, "stage", "", "Growth stage")
	return cmd
}

func reportCommand(st *state) *cobra.Command {
	var farmID, metricsFile string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a weekly farm report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var metrics agronomy.FarmMetrics
			if metricsFile != "" {
				data, err := os.ReadFile(metricsFile)
				if err != nil {
					return fmt.Errorf("reading metrics: %w", err)
				}
				if err := json.Unmarshal(data, &metrics); err != nil {
					return fmt.Errorf("%w: decoding metrics: %v", agronomy.ErrInvalidInput, err)
				}
			}
			report, err := st.backend.Reporter.Generate(cmd.Context(), farmID, metrics)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&farmID, "farm", "", "Farm identifier")
	cmd.Flags().StringVarP(&metricsFile, "metrics", "m", "", "JSON file with the week's farm metrics")
	_ = cmd.MarkFlagRequired("farm")
	return cmd
}

func serveCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if st.backend.Services == nil {
				return errors.New("serve needs a configured backend")
			}
			server, err := st.backend.Services.NewHTTPServer(st.opts.Version, "")
			if err != nil {
				return err
			}
			st.log.Info().Str("addr", server.Addr).Msg("server listening")
			return app.Serve(cmd.Context(), server)
		},
	}
}
