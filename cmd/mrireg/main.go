package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"mrireg/internal/models"
	"mrireg/pkg/config"
	"mrireg/pkg/fsl"
	"mrireg/pkg/pipeline"
	"mrireg/pkg/registration"
)

func main() {
	if err := run(os.Stdout, os.Args); err != nil {
		log.Fatalf("mrireg: %v", err)
	}
}

// run builds the CLI writing to out and executes it with args, where
// args[0] is the program name.
func run(out io.Writer, args []string) error {
	app := &cli.App{
		Name:  "mrireg",
		Usage: "build FSL registration workflows and emit their execution plans",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "mrireg.yaml", Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before environment overrides"},
			&cli.StringFlag{Name: "log-level", Usage: "override the configured log level"},
		},
		Commands: []*cli.Command{
			anat2mniCommand(),
			ventr2diffCommand(),
			invertXFMCommand(),
			initConfigCommand(),
		},
		Writer:    out,
		ErrWriter: out,
	}
	return app.Run(args)
}

func anat2mniCommand() *cli.Command {
	return &cli.Command{
		Name:  "anat2mni",
		Usage: "register anatomical images to MNI space with FLIRT and FNIRT",
		Flags: append(emitFlags(registration.DefaultAnat2MNISinkTag, registration.DefaultAnat2MNIName),
			&cli.StringSliceFlag{Name: "brain", Usage: "brain-extracted anatomical image, once per subject"},
			&cli.StringSliceFlag{Name: "skull", Usage: "whole-head anatomical image, once per subject"},
			&cli.StringFlag{Name: "reference-brain", Usage: "override the MNI brain template"},
			&cli.StringFlag{Name: "reference-skull", Usage: "override the MNI head template"},
			&cli.StringFlag{Name: "ref-mask", Usage: "override the MNI brain mask"},
			&cli.StringFlag{Name: "fnirt-config", Usage: "override the fnirt configuration"},
		),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			wf, err := registration.Anat2MNIFSL(cfg, workflowOptions(c))
			if err != nil {
				return err
			}
			bindings := pipeline.Bindings{}
			bindSeq(c, bindings, "brain", registration.Brain)
			bindSeq(c, bindings, "skull", registration.Skull)
			bindScalar(c, bindings, "reference-brain", registration.ReferenceBrain)
			bindScalar(c, bindings, "reference-skull", registration.ReferenceSkull)
			bindScalar(c, bindings, "ref-mask", registration.RefMask)
			bindScalar(c, bindings, "fnirt-config", registration.FNIRTConfig)
			return emit(c, cfg, wf, bindings)
		},
	}
}

func ventr2diffCommand() *cli.Command {
	return &cli.Command{
		Name:  "ventr2diff",
		Usage: "map the standard lateral ventricle mask into diffusion space",
		Flags: append(emitFlags(registration.DefaultVentr2DiffSinkTag, registration.DefaultVentr2DiffName),
			&cli.StringSliceFlag{Name: "highres-brain", Usage: "brain-extracted T1w image, once per subject"},
			&cli.StringSliceFlag{Name: "highres", Usage: "whole-head T1w image, once per subject"},
			&cli.StringSliceFlag{Name: "highres2diff", Usage: "highres to diffusion affine, once per subject"},
			&cli.StringFlag{Name: "reference-ventricle", Usage: "standard-space ventricle mask"},
			&cli.StringFlag{Name: "reference-brain", Usage: "override the MNI brain template"},
			&cli.StringFlag{Name: "fnirt-config", Usage: "override the fnirt configuration"},
		),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			wf, err := registration.StdVentr2Diff(cfg, workflowOptions(c))
			if err != nil {
				return err
			}
			bindings := pipeline.Bindings{}
			bindSeq(c, bindings, "highres-brain", registration.HighresBrain)
			bindSeq(c, bindings, "highres", registration.Highres)
			bindSeq(c, bindings, "highres2diff", registration.Highres2Diff)
			bindScalar(c, bindings, "reference-ventricle", registration.ReferenceVentricle)
			bindScalar(c, bindings, "reference-brain", registration.ReferenceBrain)
			bindScalar(c, bindings, "fnirt-config", registration.FNIRTConfig)
			return emit(c, cfg, wf, bindings)
		},
	}
}

func initConfigCommand() *cli.Command {
	return &cli.Command{
		Name:      "init-config",
		Usage:     "write a default configuration file",
		ArgsUsage: "[path]",
		Action: func(c *cli.Context) error {
			path := c.String("config")
			if c.Args().Present() {
				path = c.Args().First()
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Default configuration written to: %s\n", path)
			return nil
		},
	}
}

// invertXFMCommand inverts a FLIRT affine in process, for inspecting the
// matrices a resolved plan will hand to convert_xfm.
func invertXFMCommand() *cli.Command {
	return &cli.Command{
		Name:      "invert-xfm",
		Usage:     "invert a 4x4 FLIRT affine matrix",
		ArgsUsage: "<matrix.mat>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to a file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			if !c.Args().Present() {
				return errors.New("invert-xfm: matrix file required")
			}
			path := c.Args().First()
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("error opening matrix: %w", err)
			}
			defer f.Close()

			m, err := fsl.ReadAffine(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			inv, err := (&fsl.ConvertXFM{Invert: true}).Apply(m)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			out := c.String("output")
			if out == "" {
				return fsl.WriteAffine(c.App.Writer, inv)
			}
			w, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("error creating output file: %w", err)
			}
			if err := fsl.WriteAffine(w, inv); err != nil {
				w.Close()
				return err
			}
			log.WithField("path", out).Info("inverse affine written")
			return w.Close()
		},
	}
}

func emitFlags(tag, name string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "sink-tag", Value: tag, Usage: "output directory under the sink root"},
		&cli.StringFlag{Name: "name", Value: name, Usage: "workflow name"},
		&cli.StringFlag{Name: "workdir", Usage: "override the configured working directory root"},
		&cli.StringFlag{Name: "format", Value: "yaml", Usage: "yaml (resolved plan) or dot (graph)"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to a file instead of stdout"},
	}
}

func workflowOptions(c *cli.Context) registration.Options {
	return registration.Options{
		SinkTag: c.String("sink-tag"),
		Name:    c.String("name"),
	}
}

func bindSeq(c *cli.Context, b pipeline.Bindings, flag, port string) {
	if c.IsSet(flag) {
		b[port] = models.Seq(c.StringSlice(flag)...)
	}
}

func bindScalar(c *cli.Context, b pipeline.Bindings, flag, port string) {
	if c.IsSet(flag) {
		b[port] = models.Scalar(c.String(flag))
	}
}

// loadConfig reads the configuration named by the global flags and
// configures logging from it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if wd := c.String("workdir"); wd != "" {
		cfg.Paths.WorkDir = wd
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	switch cfg.Logging.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}
	return nil
}

// emit writes either the resolved plan or the DOT graph of wf.
func emit(c *cli.Context, cfg *config.Config, wf *pipeline.Workflow, bindings pipeline.Bindings) error {
	var (
		data []byte
		err  error
	)
	switch format := c.String("format"); format {
	case "yaml":
		var plan *pipeline.Plan
		plan, err = pipeline.Resolve(wf, cfg.Paths.WorkDir, bindings)
		if err != nil {
			return err
		}
		data, err = plan.YAML()
	case "dot":
		data, err = pipeline.DOT(wf)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}

	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("error writing %s: %w", path, err)
		}
		log.WithField("path", path).Info("wrote workflow")
		return nil
	}
	_, err = c.App.Writer.Write(data)
	return err
}
