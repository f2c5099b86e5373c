package config

// DefaultYAML is written by "chifron config" when no config file exists.
const DefaultYAML = `# HTTP listener
server:
  addr: ":5000"
  read_timeout: "10s"
  write_timeout: "60s"
  shutdown_timeout: "10s"
  # requests per second per client IP (0 disables the limit)
  rate_limit:
    rps: 10
    burst: 20

api:
  # prefix of every API route
  base_path: "/api"
  # bearer keys; leave empty to allow every request.
  # keys may also live in security.yml next to this file,
  # or in CHIFRON_API_KEYS (comma separated)
  access_keys: []

# audio artifacts are stored in <folder>/<audio_subfolder>
static:
  folder: "static"
  audio_subfolder: "audio"
  # public mount of folder; empty serves audio through the API only
  url_path: "/static"

tts:
  # engine: gtts, google, piper or mock
  engine: "gtts"
  language: "fr"
  # upper bound for one synthesis
  timeout: "30s"

  gtts:
    binary: "gtts-cli"
    slow: false
    requests_per_minute: 50

  google:
    # falls back to GOOGLE_APPLICATION_CREDENTIALS
    credentials_file: ""
    voice: "fr-FR-Standard-A"
    speaking_rate: 1.0
    pitch: 0.0

  piper:
    binary: "piper"
    # model: "~/.local/share/piper/fr_FR-siwis-medium.onnx"

  mock:
    delay: "0s"
    fail: false

log:
  # debug, info, warn or error
  level: "info"
  # text, json or logfmt
  format: "text"
  # file: ""
`
