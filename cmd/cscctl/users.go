package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cscenter/backend/internal/dto"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "用户管理",
	}

	var req dto.CreateUserRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "创建用户并输出临时密码",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			resp, err := a.svc.User.CreateUser(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id=%d username=%s temp_password=%s\n",
				resp.User.ID, resp.User.Username, resp.TempPassword)
			return nil
		}),
	}
	create.Flags().StringVar(&req.Username, "username", "", "用户名")
	create.Flags().StringVar(&req.Email, "email", "", "邮箱")
	create.Flags().StringVar(&req.FirstName, "first-name", "", "名")
	create.Flags().StringVar(&req.LastName, "last-name", "", "姓")
	create.Flags().StringVar(&req.Patronymic, "patronymic", "", "父称")
	create.Flags().StringVar(&req.CityCode, "city", "", "城市编码")
	create.Flags().StringSliceVar(&req.Roles, "role", nil, "角色，可重复")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")

	var (
		userID int64
		role   string
	)
	addRole := &cobra.Command{
		Use:   "add-role",
		Short: "为用户添加当前站点的角色",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.svc.User.AssignRole(cmd.Context(), userID, role); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "已添加")
			return nil
		}),
	}
	addRole.Flags().Int64Var(&userID, "id", 0, "用户 ID")
	addRole.Flags().StringVar(&role, "role", "", "角色")
	_ = addRole.MarkFlagRequired("id")
	_ = addRole.MarkFlagRequired("role")

	var resetID int64
	reset := &cobra.Command{
		Use:   "reset-password",
		Short: "重置密码并输出临时密码",
		RunE: withApp(false, func(cmd *cobra.Command, a *app, _ []string) error {
			resp, err := a.svc.User.ResetPassword(cmd.Context(), resetID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "temp_password=%s\n", resp.TempPassword)
			return nil
		}),
	}
	reset.Flags().Int64Var(&resetID, "id", 0, "用户 ID")
	_ = reset.MarkFlagRequired("id")

	cmd.AddCommand(create, addRole, reset)
	return cmd
}
