package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/lqhoang/classcal/internal/auth"
	"github.com/lqhoang/classcal/internal/config"
	"github.com/lqhoang/classcal/internal/gcal"
	"github.com/lqhoang/classcal/internal/pipeline"
	"github.com/lqhoang/classcal/internal/school"
	"github.com/lqhoang/classcal/internal/school/huflit"
	"github.com/lqhoang/classcal/internal/school/sgu"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `Class Schedule Calendar Tool

Fetches a student timetable from a university portal (SGU or HUFLIT),
normalizes it into weekly recurring events and pushes it into a dedicated
Google Calendar, or exports it as an iCalendar file.

USAGE:
    %s [OPTIONS]

MODES:
    import     Create the destination calendar and fill it with the timetable.
               Refuses to run when the calendar already exists.
    update     Re-fetch the timetable and rebuild an existing calendar.
               The old calendar is only dropped after the portal delivered.
    export     Write the timetable as iCalendar data to --out (or stdout)
               instead of touching Google Calendar.

OPTIONS:
    -h, --help                Show this help message and exit
    --mode MODE               One of import, update or export (default: import)
    --config FILE             Path to JSON config file (optional)
    --school NAME             Portal to fetch from: sgu or huflit
                              (default: sgu, overrides config file and CLASSCAL_SCHOOL env var)
    --username NAME           Portal account name
                              (overrides config file and CLASSCAL_USERNAME env var)
    --semester VALUE          Term to fetch, in the portal's own notation
                              (default: the portal's current term)
    --year VALUE              School year qualifier for portals that ask for one
                              (default: the portal's current school year)
    --calendar NAME           Name of the destination calendar
                              (default: "Class Schedule", overrides config file and CLASSCAL_CALENDAR env var)
    --time-zone ZONE          IANA time zone of the timetable
                              (default: "Asia/Ho_Chi_Minh", overrides config file and CLASSCAL_TIMEZONE env var)
    --credentials-path PATH   Path to Google OAuth credentials JSON file
                              (overrides config file and CLASSCAL_CREDENTIALS env var)
    --token-path PATH         Path to store the Google OAuth token
                              (default: token.json, overrides config file and CLASSCAL_TOKEN env var)
    --profiles FILE           YAML file with per-school lookup table overrides
                              (overrides config file and CLASSCAL_PROFILES env var)
    --out FILE                Destination file for export mode (default: stdout)

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables
    3. Config file (--config)
    4. Defaults

    A .env file in the working directory is loaded into the environment
    before the precedence is applied.

CONFIG FILE:
    Example:
    {
      "school": "sgu",
      "username": "3119410123",
      "credentials_path": "/path/to/credentials.json",
      "token_path": "/path/to/token.json",
      "calendar_name": "Class Schedule",
      "time_zone": "Asia/Ho_Chi_Minh",
      "profiles_path": "/path/to/profiles.yaml"
    }

    The Google credentials JSON file should be in the format downloaded from
    Google Cloud Console. It should contain either an "installed" or "web"
    section with "client_id" and "client_secret" fields.

    The portal password never goes into the config file. Set the
    CLASSCAL_PASSWORD environment variable or type it at the prompt.

ENVIRONMENT VARIABLES:
    CLASSCAL_SCHOOL           Portal to fetch from: sgu or huflit
    CLASSCAL_USERNAME         Portal account name
    CLASSCAL_PASSWORD         Portal account password
    CLASSCAL_CREDENTIALS      Path to Google OAuth credentials JSON file
    CLASSCAL_TOKEN            Path to store the Google OAuth token
    CLASSCAL_CALENDAR         Name of the destination calendar
    CLASSCAL_TIMEZONE         IANA time zone of the timetable
    CLASSCAL_PROFILES         YAML file with per-school lookup table overrides

DESCRIPTION:
    The tool logs in to the school portal with your student account, scrapes
    the timetable of one term and turns every class into a weekly recurring
    event. Import and update push the events into a dedicated Google Calendar
    named by --calendar; export writes the same events as an .ics file.

    The destination calendar is owned entirely by this tool. Update drops and
    recreates it on every run, so keep personal events out of it.

    Google authentication uses OAuth 2.0. On the first run a browser window
    opens to authorize the tool; the token lands in --token-path and later
    runs reuse it without a prompt.

EXAMPLES:
    # First run: import the current term into a new calendar
    %s --school sgu --username 3119410123

    # Rebuild the calendar after the timetable changed
    %s --mode update --school sgu --username 3119410123

    # Fetch a specific HUFLIT term and export it as a file
    %s --mode export --school huflit --semester HK02 --year 2023-2024 --out schedule.ics

    # Non-interactive run with a config file
    CLASSCAL_PASSWORD=... %s --config /path/to/config.json --mode update

    # Show help
    %s --help

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	// Parse command-line flags
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	modeFlag := flag.String("mode", "import", "One of import, update or export")
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	schoolFlag := flag.String("school", "", "Portal to fetch from: sgu or huflit (overrides config file and CLASSCAL_SCHOOL env var)")
	usernameFlag := flag.String("username", "", "Portal account name (overrides config file and CLASSCAL_USERNAME env var)")
	semesterFlag := flag.String("semester", "", "Term to fetch, in the portal's own notation (default: the portal's current term)")
	yearFlag := flag.String("year", "", "School year qualifier for portals that ask for one")
	calendarName := flag.String("calendar", "", "Name of the destination calendar (overrides config file and CLASSCAL_CALENDAR env var)")
	timeZoneFlag := flag.String("time-zone", "", "IANA time zone of the timetable (overrides config file and CLASSCAL_TIMEZONE env var)")
	credentialsPath := flag.String("credentials-path", "", "Path to Google OAuth credentials JSON file (overrides config file and CLASSCAL_CREDENTIALS env var)")
	tokenPath := flag.String("token-path", "", "Path to store the Google OAuth token (overrides config file and CLASSCAL_TOKEN env var)")
	profilesPath := flag.String("profiles", "", "YAML file with per-school lookup table overrides (overrides config file and CLASSCAL_PROFILES env var)")
	outFile := flag.String("out", "", "Destination file for export mode (default: stdout)")
	flag.Parse()

	// Show help if requested
	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	// Set up logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *modeFlag != "import" && *modeFlag != "update" && *modeFlag != "export" {
		log.Fatalf("Unknown mode %q, expected import, update or export. Use --help for more information.", *modeFlag)
	}

	ctx := context.Background()

	// Load configuration (precedence: flags > env vars > config file > defaults)
	cfg, err := config.LoadConfig(*configFile, *schoolFlag, *usernameFlag, *credentialsPath, *tokenPath, *calendarName, *timeZoneFlag, *profilesPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load the configured time zone: %v", err)
	}

	registry := school.NewRegistry(sgu.New(loc), huflit.New(loc))
	if cfg.ProfilesPath != "" {
		profiles, err := school.LoadProfiles(cfg.ProfilesPath)
		if err != nil {
			log.Fatalf("Failed to load profiles: %v", err)
		}
		if err := registry.ApplyProfiles(profiles); err != nil {
			log.Fatalf("Failed to apply profiles: %v", err)
		}
	}

	source, err := registry.Lookup(cfg.School)
	if err != nil {
		log.Fatalf("Failed to pick the school: %v", err)
	}

	if cfg.Username == "" {
		cfg.Username = promptLine("Portal username: ")
	}
	if cfg.Username == "" {
		log.Fatalf("A portal username is required. Use --username or CLASSCAL_USERNAME.")
	}
	if cfg.Password == "" {
		cfg.Password = promptPassword("Portal password: ")
	}

	// Google Calendar is only involved in the import and update modes.
	var calClient *gcal.Client
	if *modeFlag != "export" {
		if cfg.CredentialsPath == "" {
			log.Fatalf("credentials_path must be provided via --credentials-path flag, CLASSCAL_CREDENTIALS environment variable, or config file")
		}
		clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.CredentialsPath)
		if err != nil {
			log.Fatalf("Failed to load Google credentials: %v", err)
		}

		oauthConfig := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "http://127.0.0.1:8080", // Will be updated dynamically by auth flow
			Scopes: []string{
				"https://www.googleapis.com/auth/calendar",
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		}

		tokenStore := auth.NewFileTokenStore(cfg.TokenPath)
		httpClient, err := auth.GetAuthenticatedClient(ctx, oauthConfig, tokenStore)
		if err != nil {
			log.Fatalf("Failed to authenticate with Google: %v", err)
		}

		calClient, err = gcal.NewClient(ctx, httpClient)
		if err != nil {
			log.Fatalf("Failed to create the Google Calendar client: %v", err)
		}
	}

	pipe := pipeline.New(source, calClient, cfg)

	switch *modeFlag {
	case "import":
		if err := pipe.Import(ctx, *semesterFlag, *yearFlag); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
	case "update":
		if err := pipe.Update(ctx, *semesterFlag, *yearFlag); err != nil {
			log.Fatalf("Update failed: %v", err)
		}
	case "export":
		out := os.Stdout
		if *outFile != "" {
			f, err := os.Create(*outFile)
			if err != nil {
				log.Fatalf("Failed to create %s: %v", *outFile, err)
			}
			out = f
		}
		if err := pipe.Export(ctx, *semesterFlag, *yearFlag, out); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		if out != os.Stdout {
			if err := out.Close(); err != nil {
				log.Fatalf("Failed to close %s: %v", *outFile, err)
			}
			log.Printf("Wrote %s", *outFile)
		}
	}
}

// promptLine reads one line from stdin, with the prompt on stderr so export
// mode can still pipe its output.
func promptLine(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	return strings.TrimSpace(line)
}

// promptPassword reads a password without echoing it back.
func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("Failed to read the password: %v", err)
	}
	return string(raw)
}
