package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

const defaultSampleLimit = 100

// newHTTPApp builds the live API. hub and store may be nil, their
// routes are only mounted when present.
func newHTTPApp(profiler *Profiler, hub *Hub, store *SampleStore) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "MySQL Query Statistics",
		DisableStartupMessage: true,
	})

	// Windowed and cumulative rankings, ?n=<rows>&pattern=<glob>
	app.Get("/api/summary", func(c *fiber.Ctx) error {
		return sendSummary(c, profiler, false)
	})
	app.Get("/api/total", func(c *fiber.Ctx) error {
		return sendSummary(c, profiler, true)
	})

	app.Get("/api/stats", func(c *fiber.Ctx) error {
		cfg := profiler.Config()
		stats := fiber.Map{
			"interval_s":  cfg.Interval.Seconds(),
			"window":      cfg.Limit,
			"num_summary": cfg.NumSummary,
			"tick":        int64(0),
		}
		if latest := profiler.Latest(); latest != nil {
			stats["tick"] = latest.Tick
		}
		if hub != nil {
			stats["websocket"] = hub.GetStats()
		}
		if memStats, err := GetMemoryStats(); err == nil {
			stats["memory"] = memStats
		}
		if store != nil {
			dbStats, err := store.GetDatabaseStats()
			if err != nil {
				log.Printf("Error getting database stats: %v\n", err)
			} else {
				stats["database"] = dbStats
			}
		}
		return c.JSON(stats)
	})

	if store != nil {
		app.Get("/api/samples", func(c *fiber.Ctx) error {
			limit := c.QueryInt("limit", defaultSampleLimit)
			if limit <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be positive"})
			}
			samples, err := store.QuerySamples(limit)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
			}
			if samples == nil {
				samples = []Sample{}
			}
			return c.JSON(samples)
		})
	}

	if hub != nil {
		SetupWebSocketRoutes(app, hub)
	}

	// Serve HTML dashboard
	app.Get("/", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(getDashboardHTML())
	})

	return app
}

func sendSummary(c *fiber.Ctx, profiler *Profiler, total bool) error {
	sub := &ClientSubscription{TopN: c.QueryInt("n", 0), Total: total}
	if sub.TopN < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "n must not be negative"})
	}
	if pattern := c.Query("pattern"); pattern != "" {
		sub.Patterns = []string{pattern}
	}
	filter, err := NewSummaryFilter(sub)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	latest := profiler.Latest()
	if latest == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no sample taken yet"})
	}
	return c.JSON(TransformSummary(latest, filter))
}

// startHTTPServer blocks until the app is shut down
func startHTTPServer(addr string, app *fiber.App) {
	log.Printf("Fiber HTTP server starting on %s\n", addr)
	if err := app.Listen(addr); err != nil {
		log.Printf("HTTP server error: %v\n", err)
	}
}

func getDashboardHTML() string {
	return `<!DOCTYPE html>
<html>
<head>
    <title>MySQL Query Statistics</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body {
            font-family: Arial, sans-serif;
            margin: 20px;
            background-color: #f5f5f5;
        }
        h1 { color: #333; }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background-color: white;
            padding: 20px;
            border-radius: 5px;
            box-shadow: 0 2px 5px rgba(0,0,0,0.1);
        }
        table {
            width: 100%;
            border-collapse: collapse;
            margin-top: 20px;
        }
        th, td {
            padding: 8px 12px;
            text-align: left;
            border-bottom: 1px solid #ddd;
        }
        td.query { font-family: monospace; word-break: break-all; }
        th {
            background-color: #4CAF50;
            color: white;
        }
        .meta { color: #666; font-size: 13px; }
        .error {
            color: #d32f2f;
            padding: 10px;
            background-color: #ffebee;
            border-radius: 4px;
            margin-top: 10px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>MySQL Query Statistics</h1>
        <label><input type="checkbox" id="total" onchange="loadSummary()"> since start</label>
        <div id="meta" class="meta"></div>
        <div id="error" class="error" style="display: none;"></div>
        <table>
            <thead>
                <tr><th>Count</th><th>Query</th></tr>
            </thead>
            <tbody id="summaryBody"></tbody>
        </table>
    </div>
    <script>
        function loadSummary() {
            const error = document.getElementById('error');
            const tbody = document.getElementById('summaryBody');
            const url = document.getElementById('total').checked ? '/api/total' : '/api/summary';
            fetch(url)
                .then(response => response.json().then(data => {
                    if (!response.ok) throw new Error(data.error || 'Failed to fetch summary');
                    return data;
                }))
                .then(data => {
                    error.style.display = 'none';
                    document.getElementById('meta').textContent =
                        'tick ' + data.tick + ' at ' + new Date(data.timestamp).toLocaleString() +
                        ', ' + data.samples + ' running queries';
                    tbody.innerHTML = data.queries.map(q =>
                        '<tr><td>' + q.count + '</td><td class="query">' + escapeHtml(q.query) + '</td></tr>'
                    ).join('');
                })
                .catch(err => {
                    error.textContent = 'Error: ' + err.message;
                    error.style.display = 'block';
                });
        }
        function escapeHtml(text) {
            const map = {'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#039;'};
            return String(text).replace(/[&<>"']/g, m => map[m]);
        }
        loadSummary();
        setInterval(loadSummary, 2000);
    </script>
</body>
</html>`
}
