package main

import (
	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
)

// Globals are shared by every subcommand.
type Globals struct {
	DB       string `help:"Path to SQLite database." default:"data/dripline.db" env:"DRIPLINE_DB"`
	Timezone string `help:"Plantation timezone for schedules and reports." default:"America/Sao_Paulo" env:"DRIPLINE_TZ"`

	SensorURL     string `help:"Sensor head base URL." env:"SENSOR_URL"`
	WeatherAPIKey string `help:"WeatherAPI.com key." env:"WEATHERAPI_KEY"`
	WeatherAPIURL string `help:"WeatherAPI.com base URL." default:"https://api.weatherapi.com/v1" env:"WEATHERAPI_URL"`
	OracleURL     string `help:"Moisture prediction service URL. The local trend model is used when empty." env:"ORACLE_URL"`

	Valve    string `help:"Valve transport." enum:"http,mqtt" default:"http" env:"VALVE_MODE"`
	ValveURL string `help:"HTTP valve controller base URL." env:"VALVE_URL"`

	MQTT       MQTTFlags      `embed:"" prefix:"mqtt-" envprefix:"MQTT_"`
	Influx     InfluxFlags    `embed:"" prefix:"influx-" envprefix:"INFLUX_"`
	FTP        FTPFlags       `embed:"" prefix:"ftp-" envprefix:"FTP_"`
	OpenAI     OpenAIFlags    `embed:"" prefix:"openai-" envprefix:"OPENAI_"`
	Thresholds ThresholdFlags `embed:"" group:"Thresholds"`
}

type MQTTFlags struct {
	URL         string `help:"MQTT broker URL, e.g. tcp://localhost:1883." env:"URL"`
	Username    string `help:"MQTT username." env:"USERNAME"`
	Password    string `help:"MQTT password." env:"PASSWORD"`
	ClientID    string `help:"MQTT client id." default:"dripline" env:"CLIENT_ID"`
	ValveTopic  string `help:"Topic for valve commands." default:"dripline/valve" env:"VALVE_TOPIC"`
	EventsTopic string `help:"Topic for decision events. Empty disables events." env:"EVENTS_TOPIC"`
}

type InfluxFlags struct {
	URL    string `help:"InfluxDB URL. Empty disables the mirror." env:"URL"`
	Token  string `help:"InfluxDB token." env:"TOKEN"`
	Org    string `help:"InfluxDB organisation." env:"ORG"`
	Bucket string `help:"InfluxDB bucket." default:"dripline" env:"BUCKET"`
	Site   string `help:"Site tag written with every point." default:"plantation" env:"SITE"`
}

type FTPFlags struct {
	Addr     string `help:"FTP server host:port for CSV exports." env:"ADDR"`
	User     string `help:"FTP user." env:"USER"`
	Password string `help:"FTP password." env:"PASSWORD"`
	Dir      string `help:"Remote directory for exports." env:"DIR"`
}

type OpenAIFlags struct {
	APIKey string `name:"api-key" help:"OpenAI API key. Enables cycle narratives." env:"API_KEY"`
	Model  string `help:"Chat model for narratives." default:"gpt-4o-mini" env:"MODEL"`
}

// ThresholdFlags are the decision thresholds and the plantation's soil parameters.
type ThresholdFlags struct {
	Moisture    float64 `name:"moisture-threshold" help:"Soil moisture threshold, %." default:"30" env:"MOISTURE_THRESHOLD"`
	Temperature float64 `name:"temperature-threshold" help:"Air temperature stress threshold, °C." default:"32" env:"TEMPERATURE_THRESHOLD"`
	Humidity    float64 `name:"humidity-threshold" help:"Air humidity stress threshold, %." default:"40" env:"HUMIDITY_THRESHOLD"`
	Pressure    float64 `name:"pressure-threshold" help:"Pressure stress threshold, hPa." default:"1020" env:"PRESSURE_THRESHOLD"`
	Density     float64 `name:"soil-density" help:"Soil bulk density, kg/m³." default:"1500" env:"SOIL_DENSITY"`
	Area        float64 `name:"area" help:"Plantation area, m²." default:"10" env:"PLANTATION_AREA"`
	Depth       float64 `name:"root-depth" help:"Root zone depth, m." default:"0.3" env:"ROOT_DEPTH"`
	FlowRate    float64 `name:"flow-rate" help:"Flow per emitter, L/s." default:"2" env:"FLOW_RATE"`
	Emitters    int     `name:"emitters" help:"Number of emitters." default:"4" env:"EMITTERS"`
}

type CLI struct {
	Globals

	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the API server, sensor import and scheduled decision cycles."`
	Cycle  CycleCmd  `cmd:"" help:"Run one decision cycle and print the outcome."`
	Import ImportCmd `cmd:"" help:"Record one sensor head reading."`
	Export ExportCmd `cmd:"" help:"Export measurements for an interval as CSV."`
	Window WindowCmd `cmd:"" help:"Print the measurements selected for an interval as JSON."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("dripline"),
		kong.Description("Automated drip irrigation controller."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
