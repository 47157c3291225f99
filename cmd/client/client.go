package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"hati/internal/common"
	hatiNet "hati/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	account := flag.String("account", "", "Account name (compulsory for submit/cancel/balance)")
	action := flag.String("action", "submit", "Action: ['submit', 'cancel', 'depth', 'quote', 'balance']")

	// Order parameters
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	priceStr := flag.String("price", "100", "Limit price (decimal string)")
	qtyStr := flag.String("qty", "1", "Quantity (decimal string)")

	// Cancel parameters
	orderUUID := flag.String("uuid", "", "UUID of the order to cancel")

	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	// Listen for reports (async); execution reports can arrive at any time.
	go readReports(conn)

	side := common.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Sell
	}

	var message hatiNet.Message
	switch strings.ToLower(*action) {
	case "submit":
		requireAccount(*account)
		message = hatiNet.SubmitOrderMessage{
			BaseMessage: hatiNet.BaseMessage{TypeOf: hatiNet.SubmitOrder},
			Side:        side,
			Price:       mustDecimal(*priceStr, "price"),
			Quantity:    mustDecimal(*qtyStr, "qty"),
			Account:     *account,
		}

	case "cancel":
		requireAccount(*account)
		if *orderUUID == "" {
			log.Fatal("Error: -uuid is required for cancellation")
		}
		message = hatiNet.CancelOrderMessage{
			BaseMessage: hatiNet.BaseMessage{TypeOf: hatiNet.CancelOrder},
			OrderUUID:   *orderUUID,
			Account:     *account,
		}

	case "depth":
		message = hatiNet.BaseMessage{TypeOf: hatiNet.GetDepth}

	case "quote":
		message = hatiNet.GetQuoteMessage{
			BaseMessage: hatiNet.BaseMessage{TypeOf: hatiNet.GetQuote},
			Side:        side,
			Quantity:    mustDecimal(*qtyStr, "qty"),
		}

	case "balance":
		requireAccount(*account)
		message = hatiNet.GetBalanceMessage{
			BaseMessage: hatiNet.BaseMessage{TypeOf: hatiNet.GetBalance},
			Account:     *account,
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	if _, err := conn.Write(message.Serialize()); err != nil {
		log.Fatalf("Failed to send %s request: %v", *action, err)
	}
	fmt.Printf("-> Sent %s request\n", strings.ToUpper(*action))

	// Keep the client alive to receive reports.
	fmt.Println("Listening for reports... (Press Ctrl+C to exit)")
	select {}
}

func requireAccount(account string) {
	if account == "" {
		fmt.Println("Error: -account is compulsory for this action.")
		flag.Usage()
		os.Exit(1)
	}
}

func mustDecimal(s, field string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("Invalid -%s %q: %v", field, s, err)
	}
	return d
}

// readReports continuously reads length-framed reports from the server and
// prints them.
func readReports(conn net.Conn) {
	for {
		prefix := make([]byte, hatiNet.ReportLenPrefix)
		if _, err := io.ReadFull(conn, prefix); err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}
		body := make([]byte, binary.BigEndian.Uint32(prefix))
		if _, err := io.ReadFull(conn, body); err != nil {
			log.Printf("Error reading report body: %v", err)
			os.Exit(0)
		}

		report, err := hatiNet.ParseReport(body)
		if err != nil {
			log.Printf("Error parsing report: %v", err)
			continue
		}
		printReport(report)
	}
}

func printReport(r hatiNet.Report) {
	switch r.TypeOf {
	case hatiNet.SubmitReport:
		fmt.Printf("\n[ACCEPTED] UUID: %s | Filled: %s | Remaining: %s\n",
			r.OrderUUID, r.Filled, r.Remaining)
	case hatiNet.CancelReport:
		fmt.Printf("\n[CANCELLED]\n")
	case hatiNet.QuoteReport:
		fmt.Printf("\n[QUOTE] Notional: %s\n", r.Notional)
	case hatiNet.DepthReport:
		fmt.Printf("\n[DEPTH] %d levels\n", len(r.Levels))
		for _, level := range r.Levels {
			fmt.Printf("  %-4s %s x %s\n", level.Side, level.Price, level.Quantity)
		}
	case hatiNet.BalanceReport:
		fmt.Printf("\n[BALANCE]\n")
		for asset, balance := range r.Balances {
			fmt.Printf("  %s: %s\n", asset, balance)
		}
	case hatiNet.ExecutionReport:
		fmt.Printf("\n[EXECUTION] %s | Qty: %s | Price: %s | vs: %s | UUID: %s\n",
			r.Side, r.Quantity, r.Price, r.Counterparty, r.OrderUUID)
	case hatiNet.ErrorReport:
		fmt.Printf("\n[SERVER ERROR] %s\n", r.Err)
	}
}
