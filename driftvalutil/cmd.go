/*
Copyright © 2024 the DriftVal authors.
This file is part of DriftVal.

DriftVal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DriftVal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DriftVal.  If not, see <http://www.gnu.org/licenses/>.
*/

package driftvalutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/driftval"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to DriftVal.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, log messages are
              only written to standard output. The file is rotated when it grows
              large.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to write: one of
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "DepthAvg.InputDir",
			usage: `
              DepthAvg.InputDir is the directory holding the daily model velocity
              files. It can include environment variables.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.OutputDir",
			usage: `
              DepthAvg.OutputDir is the directory the yearly depth-averaged
              files are written to.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.TempDir",
			usage: `
              DepthAvg.TempDir is the directory the daily depth-averaged files
              are written to. Existing daily files are reused. If blank,
              DepthAvg.OutputDir is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.UPattern",
			usage: `
              DepthAvg.UPattern is the name pattern of the daily zonal velocity
              files, where %d is replaced with the proleptic Gregorian day ordinal.`,
			defaultVal: "umerc_phy_%d.nc",
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.VPattern",
			usage: `
              DepthAvg.VPattern is the name pattern of the daily meridional
              velocity files.`,
			defaultVal: "vmerc_phy_%d.nc",
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.Depths",
			usage: `
              DepthAvg.Depths are the depths [m] the velocities are interpolated
              to and averaged over.`,
			defaultVal: []string{"12", "15", "18"},
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.Years",
			usage: `
              DepthAvg.Years are the years to process.`,
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.Processes",
			usage: `
              DepthAvg.Processes is the number of days processed at once. Zero
              means one per processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "DepthAvg.SkipMissing",
			usage: `
              DepthAvg.SkipMissing specifies whether to skip days without input
              files instead of failing.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{depthAvgCmd.Flags()},
		},
		{
			name: "GDPFile",
			usage: `
              GDPFile is the Global Drifter Program ragged-array NetCDF file.
              It can be a local path, an http(s) URL, or a blob storage
              location such as gs://bucket/gdp.nc.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags(), trajectoriesCmd.Flags()},
		},
		{
			name: "StartDB",
			usage: `
              StartDB is the SQLite database holding the start and drifter
              trajectory tables.`,
			defaultVal: "driftval.db",
			flagsets: []*pflag.FlagSet{startsCmd.Flags(), trajectoriesCmd.Flags(),
				trackCmd.Flags(), dispersalCmd.Flags(), lookupCmd.Flags()},
		},
		{
			name: "Starts.OutputFile",
			usage: `
              Starts.OutputFile is the NetCDF file the start positions are
              written to. It can be a blob storage location.`,
			defaultVal: "starts.nc",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.Shapefile",
			usage: `
              Starts.Shapefile, if not blank, is a point shapefile the start
              positions are exported to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.DrogueCenterDepth",
			usage: `
              Starts.DrogueCenterDepth is the drogue centre depth [m] of the
              drifters to use.`,
			defaultVal: 15.0,
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.FirstYear",
			usage: `
              Starts.FirstYear is the earliest year to choose starts from.`,
			defaultVal: 2007,
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.SpacingDays",
			usage: `
              Starts.SpacingDays is the minimum time [days] between starts
              along one drifter.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.DepthFile",
			usage: `
              Starts.DepthFile, if not blank, is a NetCDF file holding the
              sea-floor elevation [m, negative down] under each GDP observation.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.DepthVar",
			usage: `
              Starts.DepthVar is the elevation variable in Starts.DepthFile.`,
			defaultVal: "depth",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.MinDepth",
			usage: `
              Starts.MinDepth is the lowest sea-floor elevation [m] at which
              starts are kept.`,
			defaultVal: -500.0,
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.LandMaskU",
			usage: `
              Starts.LandMaskU and Starts.LandMaskV, if not blank, are
              depth-averaged velocity files. Starts without a wet velocity
              node nearby are dropped.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.LandMaskV",
			usage: `
              Starts.LandMaskV is the meridional velocity file of the land mask.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "Starts.Region",
			usage: `
              Starts.Region, if not blank, is a GeoJSON polygon or
              multipolygon file. Starts outside of it are dropped.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{startsCmd.Flags()},
		},
		{
			name: "MaxAgeDays",
			usage: `
              MaxAgeDays is the longest drifter duration [days] kept in
              trajectories and simulated by the particle tracker.`,
			defaultVal: 60,
			flagsets:   []*pflag.FlagSet{trajectoriesCmd.Flags(), trackCmd.Flags()},
		},
		{
			name: "Track.StartFile",
			usage: `
              Track.StartFile, if not blank, is a start file written by the
              starts command. Its starts are used instead of the ones in
              StartDB. It can be a blob storage location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Track.UFiles",
			usage: `
              Track.UFiles are the depth-averaged zonal velocity files, in
              time order.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Track.VFiles",
			usage: `
              Track.VFiles are the depth-averaged meridional velocity files
              matching Track.UFiles.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Track.GridFile",
			usage: `
              Track.GridFile, if not blank, holds the grid node coordinates.
              Otherwise they are read from the first zonal velocity file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Track.OutputFile",
			usage: `
              Track.OutputFile is the NetCDF file particle trajectories are
              written to. It can be a blob storage location.`,
			defaultVal: "trajectories.nc",
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Track.DtMinutes",
			usage: `
              Track.DtMinutes is the advection time step [minutes].`,
			defaultVal: 60,
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "OutputEveryHours",
			usage: `
              OutputEveryHours is the interval [hours] between recorded
              particle positions.`,
			defaultVal: 6,
			flagsets:   []*pflag.FlagSet{trackCmd.Flags(), endpointsCmd.Flags()},
		},
		{
			name: "Track.EnsembleSize",
			usage: `
              Track.EnsembleSize is the number of particles released from
              each start. The modelled spread is zero with fewer than two.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Track.EnsembleRadius",
			usage: `
              Track.EnsembleRadius is the radius [km] ensemble members are
              spread over.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Track.SearchRadius",
			usage: `
              Track.SearchRadius is the distance [degrees] within which grid
              nodes contribute to an interpolated velocity.`,
			defaultVal: 0.25,
			flagsets:   []*pflag.FlagSet{trackCmd.Flags()},
		},
		{
			name: "Endpoints.TrajectoryFiles",
			usage: `
              Endpoints.TrajectoryFiles are the particle trajectory files
              written by the track command.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{endpointsCmd.Flags()},
		},
		{
			name: "EndpointDir",
			usage: `
              EndpointDir is the directory holding one particle endpoint
              file per duration.`,
			defaultVal: "endpoints",
			flagsets:   []*pflag.FlagSet{endpointsCmd.Flags(), dispersalCmd.Flags()},
		},
		{
			name: "Durations",
			usage: `
              Durations are the drifter durations [days] to calculate.`,
			defaultVal: driftval.DefaultDurations(),
			flagsets: []*pflag.FlagSet{endpointsCmd.Flags(), dispersalCmd.Flags(),
				statsCmd.Flags(), histogramCmd.Flags()},
		},
		{
			name: "Method",
			usage: `
              Method is the distance calculation method: greatcircle or
              planesailing.`,
			defaultVal: "greatcircle",
			flagsets:   []*pflag.FlagSet{dispersalCmd.Flags(), statsCmd.Flags(), histogramCmd.Flags()},
		},
		{
			name: "DispersalFile",
			usage: `
              DispersalFile is the dispersal snapshot file. It can be a blob
              storage location.`,
			defaultVal: "dispersal.zst",
			flagsets:   []*pflag.FlagSet{dispersalCmd.Flags(), statsCmd.Flags(), histogramCmd.Flags()},
		},
		{
			name: "Stats.OutputFile",
			usage: `
              Stats.OutputFile is the statistics table. Files ending in .xlsx
              are written as workbooks and all others as CSV.`,
			defaultVal: "stats.csv",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "Histogram.OutputFile",
			usage: `
              Histogram.OutputFile is the histogram table. Files ending in
              .xlsx are written as workbooks and all others as CSV.`,
			defaultVal: "histogram.csv",
			flagsets:   []*pflag.FlagSet{histogramCmd.Flags()},
		},
		{
			name: "Histogram.Duration",
			usage: `
              Histogram.Duration is the drifter duration [days] to bin.`,
			defaultVal: 30,
			flagsets:   []*pflag.FlagSet{histogramCmd.Flags()},
		},
		{
			name: "Histogram.Component",
			usage: `
              Histogram.Component is the vector component to bin: zonal or
              meridional.`,
			defaultVal: "zonal",
			flagsets:   []*pflag.FlagSet{histogramCmd.Flags()},
		},
		{
			name: "Lookup.ID",
			usage: `
              Lookup.ID is the ID of the start to look up. If it is negative,
              the start at Lookup.Lon and Lookup.Lat is looked up instead.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{lookupCmd.Flags()},
		},
		{
			name: "Lookup.Lon",
			usage: `
              Lookup.Lon is the longitude [degrees] of the start to look up.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{lookupCmd.Flags()},
		},
		{
			name: "Lookup.Lat",
			usage: `
              Lookup.Lat is the latitude [degrees] of the start to look up.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{lookupCmd.Flags()},
		},
		{
			name: "Histogram.Min",
			usage: `
              Histogram.Min is the lowest bin edge of the normalized values.`,
			defaultVal: -10.0,
			flagsets:   []*pflag.FlagSet{histogramCmd.Flags()},
		},
		{
			name: "Histogram.Max",
			usage: `
              Histogram.Max is the highest bin edge of the normalized values.`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{histogramCmd.Flags()},
		},
		{
			name: "Histogram.Dividers",
			usage: `
              Histogram.Dividers is the number of evenly spaced bin edges.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{histogramCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DRIFTVAL")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(depthAvgCmd)
	Root.AddCommand(startsCmd)
	Root.AddCommand(trajectoriesCmd)
	Root.AddCommand(trackCmd)
	Root.AddCommand(endpointsCmd)
	Root.AddCommand(dispersalCmd)
	Root.AddCommand(statsCmd)
	Root.AddCommand(histogramCmd)
	Root.AddCommand(lookupCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("driftval: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "driftval",
	Short: "Validate modelled ocean currents against drifter dispersal.",
	Long: `DriftVal compares the dispersal of Global Drifter Program drifters with
the dispersal of numerical particles advected by modelled ocean currents.
Use the subcommands specified below to run each step of the pipeline:

  depthavg -> starts -> trajectories -> track -> endpoints -> dispersal -> stats, histogram

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DRIFTVAL_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of DriftVal.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("DriftVal v%s\n", driftval.Version)
	},
	DisableAutoGenTag: true,
}

var depthAvgCmd = &cobra.Command{
	Use:   "depthavg",
	Short: "Depth-average model velocities.",
	Long: `depthavg interpolates the daily 3-D model velocities to the drogue
depths, averages them, and combines the averages of each year into one zonal
and one meridional file. Years whose output files already exist are refused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			c, err := depthAvgConfig(Cfg)
			if err != nil {
				return err
			}
			years, err := getIntSlice(Cfg, "DepthAvg.Years")
			if err != nil {
				return fmt.Errorf("driftval: invalid DepthAvg.Years: %v", err)
			}
			return DepthAvg(e.ctx, c, years, e.log)
		})
	},
	DisableAutoGenTag: true,
}

var startsCmd = &cobra.Command{
	Use:   "starts",
	Short: "Choose start positions from drifter observations.",
	Long: `starts reads the GDP ragged array, filters the observations by drogue,
year, sea-floor depth, region and land mask, and chooses start positions spaced
along each drifter. The starts are stored in StartDB and written to
Starts.OutputFile and optionally Starts.Shapefile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			gdpFile, err := e.fetch(Cfg.GetString("GDPFile"))
			if err != nil {
				return err
			}
			c, err := startConfig(e, Cfg)
			if err != nil {
				return err
			}
			startFile, err := e.output(Cfg.GetString("Starts.OutputFile"))
			if err != nil {
				return err
			}
			var shpFile string
			if f := os.ExpandEnv(Cfg.GetString("Starts.Shapefile")); f != "" {
				if shpFile, err = e.output(f); err != nil {
					return err
				}
			}
			_, err = Starts(e.ctx, gdpFile, c, os.ExpandEnv(Cfg.GetString("StartDB")), startFile, shpFile, e.log)
			return err
		})
	},
	DisableAutoGenTag: true,
}

var trajectoriesCmd = &cobra.Command{
	Use:   "trajectories",
	Short: "Extract drifter trajectories from each start.",
	Long: `trajectories reads the GDP ragged array and stores the drogued
trajectory of the drifter following each start in StartDB, up to MaxAgeDays.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			gdpFile, err := e.fetch(Cfg.GetString("GDPFile"))
			if err != nil {
				return err
			}
			return Trajectories(e.ctx, gdpFile, os.ExpandEnv(Cfg.GetString("StartDB")),
				days(Cfg.GetInt("MaxAgeDays")), e.log)
		})
	},
	DisableAutoGenTag: true,
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Advect numerical particles from each start.",
	Long: `track releases numerical particles from the starts in StartDB that
fall within the time span of the velocity files, advects them with fourth-order
Runge-Kutta, and writes their trajectories to Track.OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			grid, err := gridConfig(e, Cfg)
			if err != nil {
				return err
			}
			outFile, err := e.output(Cfg.GetString("Track.OutputFile"))
			if err != nil {
				return err
			}
			var startFile string
			if f := os.ExpandEnv(Cfg.GetString("Track.StartFile")); f != "" {
				if startFile, err = e.fetch(f); err != nil {
					return err
				}
			}
			return Track(e.ctx, grid, trackConfig(Cfg), os.ExpandEnv(Cfg.GetString("StartDB")),
				startFile, outFile, e.log)
		})
	},
	DisableAutoGenTag: true,
}

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Collect particle positions by duration.",
	Long: `endpoints reads particle trajectory files and writes the particle
positions after each duration to EndpointDir, one file per duration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			files, err := e.fetchAll(Cfg.GetStringSlice("Endpoints.TrajectoryFiles"))
			if err != nil {
				return err
			}
			durations, err := getIntSlice(Cfg, "Durations")
			if err != nil {
				return fmt.Errorf("driftval: invalid Durations: %v", err)
			}
			return Endpoints(e.ctx, files, os.ExpandEnv(Cfg.GetString("EndpointDir")), durations,
				hours(Cfg.GetInt("OutputEveryHours")), e.log)
		})
	},
	DisableAutoGenTag: true,
}

var dispersalCmd = &cobra.Command{
	Use:   "dispersal",
	Short: "Calculate dispersal vectors.",
	Long: `dispersal pairs the particle endpoints in EndpointDir with the drifter
trajectories in StartDB and saves the drifter, centroid and particle dispersal
vectors of every start and duration to DispersalFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			c, err := dispersalConfig(Cfg)
			if err != nil {
				return err
			}
			outFile, err := e.output(Cfg.GetString("DispersalFile"))
			if err != nil {
				return err
			}
			_, err = Dispersal(e.ctx, c, os.ExpandEnv(Cfg.GetString("StartDB")),
				os.ExpandEnv(Cfg.GetString("EndpointDir")), outFile, e.log)
			return err
		})
	},
	DisableAutoGenTag: true,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize normalized dispersal.",
	Long: `stats calculates the median and interquartile range of the normalized
drifter and particle dispersal for each duration in DispersalFile. Durations and
Method must match the ones DispersalFile was calculated with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			set, err := loadDispersal(e, Cfg)
			if err != nil {
				return err
			}
			outFile, err := e.output(Cfg.GetString("Stats.OutputFile"))
			if err != nil {
				return err
			}
			_, err = Stats(set, outFile, e.log)
			return err
		})
	},
	DisableAutoGenTag: true,
}

var histogramCmd = &cobra.Command{
	Use:   "histogram",
	Short: "Bin normalized dispersal.",
	Long: `histogram calculates the probability density of one component of the
normalized drifter and particle dispersal after Histogram.Duration days.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			set, err := loadDispersal(e, Cfg)
			if err != nil {
				return err
			}
			c, err := driftval.ParseComponent(Cfg.GetString("Histogram.Component"))
			if err != nil {
				return err
			}
			div, err := dividers(Cfg.GetFloat64("Histogram.Min"), Cfg.GetFloat64("Histogram.Max"),
				Cfg.GetInt("Histogram.Dividers"))
			if err != nil {
				return err
			}
			outFile, err := e.output(Cfg.GetString("Histogram.OutputFile"))
			if err != nil {
				return err
			}
			_, err = Histogram(set, Cfg.GetInt("Histogram.Duration"), c, div, outFile)
			return err
		})
	},
	DisableAutoGenTag: true,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Print a stored start.",
	Long: `lookup prints the start in StartDB with ID Lookup.ID or, if Lookup.ID is
negative, the start at Lookup.Lon and Lookup.Lat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(e *env) error {
			s, err := Lookup(e.ctx, os.ExpandEnv(Cfg.GetString("StartDB")), Cfg.GetInt("Lookup.ID"),
				geom.Point{X: Cfg.GetFloat64("Lookup.Lon"), Y: Cfg.GetFloat64("Lookup.Lat")})
			if err != nil {
				return err
			}
			cmd.Printf("start %d: drifter %d at (%g, %g) on %s\n", s.ID, s.Drifter, s.X, s.Y,
				s.Time.UTC().Format(time.RFC3339))
			return nil
		})
	},
	DisableAutoGenTag: true,
}
