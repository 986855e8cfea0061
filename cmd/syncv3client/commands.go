package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matrix-org/sliding-sync-client/listview"
)

const helpText = `Commands:
  scroll <list> <row>     show rows starting at <row> of a list
  filter [term]           only show rooms whose name contains the term, no term to clear
  select <list> <index>   open the room at an index of a list
  show [list]             print the rows on screen, of every list by default
  room                    print the selected room
  quit
`

var errQuit = errors.New("quit")

// commander is the part of the client the commands drive.
type commander interface {
	intersector
	SetRoomNameFilter(term string)
	SelectRoom(listIndex, index int)
	Slots(listIndex int) []listview.Slot
	RoomView() listview.RoomView
	Error() string
}

// runCommand executes one line of input. Returns errQuit when the user asks to leave.
func runCommand(c commander, s *screen, numLists int, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "scroll":
		nums, err := parseInts(args, 2)
		if err != nil {
			return err
		}
		if err := checkList(nums[0], numLists); err != nil {
			return err
		}
		s.Scroll(nums[0], nums[1])
		s.report(c)
	case "filter":
		// the old positions mean nothing in the filtered lists
		for i := 0; i < numLists; i++ {
			s.Scroll(i, 0)
		}
		s.report(c)
		c.SetRoomNameFilter(strings.Join(args, " "))
	case "select":
		nums, err := parseInts(args, 2)
		if err != nil {
			return err
		}
		if err := checkList(nums[0], numLists); err != nil {
			return err
		}
		c.SelectRoom(nums[0], nums[1])
	case "show":
		if len(args) == 0 {
			for i := 0; i < numLists; i++ {
				showList(c, s, i, out)
			}
			break
		}
		nums, err := parseInts(args, 1)
		if err != nil {
			return err
		}
		if err := checkList(nums[0], numLists); err != nil {
			return err
		}
		showList(c, s, nums[0], out)
	case "room":
		showRoom(c.RoomView(), out)
	case "help":
		fmt.Fprint(out, helpText)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try 'help'", fields[0])
	}
	if errStr := c.Error(); errStr != "" {
		fmt.Fprintf(out, "sync error: %s\n", errStr)
	}
	return nil
}

func parseInts(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("want %d numbers, got %d arguments", want, len(args))
	}
	nums := make([]int, want)
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		nums[i] = n
	}
	return nums, nil
}

func checkList(listIndex, numLists int) error {
	if listIndex < 0 || listIndex >= numLists {
		return fmt.Errorf("no list %d, there are %d", listIndex, numLists)
	}
	return nil
}

func showList(c commander, s *screen, listIndex int, out io.Writer) {
	slots := c.Slots(listIndex)
	start, end := s.Window(listIndex)
	fmt.Fprintf(out, "list %d: rows %d-%d of %d\n", listIndex, start, end-1, len(slots))
	for i := start; i < end && i < len(slots); i++ {
		fmt.Fprintf(out, "%4d %s\n", i, slotLine(slots[i].Content))
	}
}

func slotLine(c listview.Content) string {
	if c.Placeholder {
		return "  " + c.Name
	}
	var sb strings.Builder
	if c.Selected {
		sb.WriteString("> ")
	} else {
		sb.WriteString("  ")
	}
	sb.WriteString(c.Name)
	if c.UnreadCount != "" {
		fmt.Fprintf(&sb, " (%s", c.UnreadCount)
		if c.UnreadClass == listview.BadgeHighlight {
			sb.WriteString("!")
		}
		sb.WriteString(")")
	}
	if c.Timestamp != "" {
		fmt.Fprintf(&sb, " [%s]", c.Timestamp)
	}
	if c.Sender != "" || c.Content != "" {
		fmt.Fprintf(&sb, " %s", strings.TrimSpace(c.Sender+" "+c.Content))
	}
	return sb.String()
}

func showRoom(view listview.RoomView, out io.Writer) {
	if view.RoomID == "" {
		fmt.Fprintln(out, "no room selected")
		return
	}
	fmt.Fprintf(out, "%s (%s)\n", view.Name, view.RoomID)
	if view.Topic != "" {
		fmt.Fprintf(out, "  %s\n", view.Topic)
	}
	for _, m := range view.Messages {
		fmt.Fprintf(out, "  [%s] %s: %s\n", m.Timestamp, m.Sender, m.Text)
	}
}
