package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/cli/sflags"
	"github.com/streamingfast/substreams-cursor-source/cursor"
	"github.com/streamingfast/substreams-cursor-source/spkg"
	"github.com/streamingfast/substreams-cursor-source/split"
	"github.com/streamingfast/substreams-cursor-source/state"
)

var ToolsGroup = Group("tools", "Developer and operator tools",
	Group("cursor", "Opaque cursor tools",
		Command(toolsCursorDecodeE,
			"decode <opaque_cursor>",
			"Decodes an opaque cursor and prints its positions",
			ExactArgs(1),
		),
		Command(toolsCursorEncodeE,
			"encode <cursor>",
			"Encodes a canonical 'c1:', 'c2:' or 'c3:' cursor into its opaque form",
			ExactArgs(1),
		),
	),
	Group("checkpoint", "Checkpoint inspection and repair",
		Command(toolsCheckpointShowE,
			"show <state_store> <package> <module> <endpoint>",
			"Prints the checkpointed cursor of the split identified by package, module and endpoint",
			ExactArgs(4),
			Flags(addCheckpointFlags),
		),
		Command(toolsCheckpointSetE,
			"set <state_store> <package> <module> <endpoint> <opaque_cursor>",
			"Overwrites the checkpointed cursor of the split, the next run resumes right after it",
			ExactArgs(5),
			Flags(addCheckpointFlags),
		),
	),
)

func addCheckpointFlags(flags *pflag.FlagSet) {
	flags.String("registry-url", spkg.DefaultRegistryURL, "Registry used to resolve '<name>@<version>' package references")
}

func toolsCursorDecodeE(cmd *cobra.Command, args []string) error {
	c, err := cursor.FromOpaque(args[0])
	if err != nil {
		return err
	}

	printCursor(c)
	return nil
}

func toolsCursorEncodeE(cmd *cobra.Command, args []string) error {
	c, err := cursor.FromString(args[0])
	if err != nil {
		return err
	}

	fmt.Println(c.ToOpaque())
	return nil
}

func toolsCheckpointShowE(cmd *cobra.Command, args []string) error {
	descriptor, err := toolsSplitDescriptor(cmd, args[1:4])
	if err != nil {
		return err
	}

	checkpointer, closeCheckpointer, err := state.NewCheckpointerFromURL(cmd.Context(), args[0], zlog)
	if err != nil {
		return fmt.Errorf("new checkpointer: %w", err)
	}
	defer closeCheckpointer()

	checkpoint, err := checkpointer.Load(cmd.Context(), descriptor.ID())
	if err != nil {
		return err
	}

	fmt.Printf("Split: %s\n", descriptor.ID())
	if checkpoint == nil {
		fmt.Println("No checkpoint")
		return nil
	}

	fmt.Printf("Token: %s\n", checkpoint.Token)
	printCursor(checkpoint.Cursor)
	return nil
}

func toolsCheckpointSetE(cmd *cobra.Command, args []string) error {
	descriptor, err := toolsSplitDescriptor(cmd, args[1:4])
	if err != nil {
		return err
	}

	checkpointer, closeCheckpointer, err := state.NewCheckpointerFromURL(cmd.Context(), args[0], zlog)
	if err != nil {
		return fmt.Errorf("new checkpointer: %w", err)
	}
	defer closeCheckpointer()

	updated, c, err := split.UpdateOffset(cmd.Context(), checkpointer, descriptor, args[4])
	if err != nil {
		return err
	}

	fmt.Printf("Checkpoint of split %s updated\n", updated.ID())
	printCursor(c)
	return nil
}

// toolsSplitDescriptor builds the descriptor of the split identified by
// package, module and endpoint, the block range plays no part in its ID.
func toolsSplitDescriptor(cmd *cobra.Command, args []string) (*split.Descriptor, error) {
	config, err := (&split.Properties{
		PackageURL:   args[0],
		OutputModule: args[1],
		EndpointURL:  args[2],
		StartBlock:   "0",
		RegistryURL:  sflags.MustGetString(cmd, "registry-url"),
	}).Validate()
	if err != nil {
		return nil, err
	}

	return split.NewDescriptor(config, ""), nil
}

func printCursor(c *cursor.Cursor) {
	fmt.Printf("Cursor: %s\n", c)
	fmt.Printf("  Step: %s\n", c.Step)
	fmt.Printf("  Block: %s\n", c.Block)
	fmt.Printf("  Head Block: %s\n", c.HeadBlock)
	fmt.Printf("  LIB: %s\n", c.LIB)
}
